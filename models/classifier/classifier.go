// Package classifier implements a fully connected image classifier plugin.
package classifier

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/config"
	"github.com/lumen-ml/lumen/internal/metrics"
	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Config is the model_args section of a classifier experiment.
type Config struct {
	// DimInput is the flattened image size, normally derived from the
	// dataset.
	DimInput int `yaml:"dim_input"`
	// NumClasses is the number of target classes, normally derived from
	// the dataset labels.
	NumClasses int `yaml:"num_classes"`
	// DimH lists hidden layer widths. Nil means a single hidden layer of
	// 256 units.
	DimH []int `yaml:"dim_h"`
}

func (c *Config) applyDefaults() {
	if c.DimH == nil {
		c.DimH = []int{256}
	}
}

func (c *Config) validate() error {
	if c.DimInput <= 0 {
		return fmt.Errorf("%w: dim_input must be positive, got %d", plugin.ErrInvalidConfig, c.DimInput)
	}
	if c.NumClasses < 2 {
		return fmt.Errorf("%w: num_classes must be at least 2, got %d", plugin.ErrInvalidConfig, c.NumClasses)
	}
	return nil
}

// Classifier is a supervised model plugin: a fully connected network trained
// with cross-entropy against integer class labels.
type Classifier[B tensor.Backend] struct {
	env plugin.Env[B]
	cfg Config

	criterion *nn.CrossEntropyLoss[B]

	nets    *plugin.Nets[B]
	losses  *plugin.Losses[B]
	results *plugin.Results
	visuals *plugin.Visuals
}

// New creates a classifier plugin from its environment.
func New[B tensor.Backend](env plugin.Env[B]) (*Classifier[B], error) {
	var cfg Config
	if err := config.DecodeModelArgs(env.ModelArgs, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", plugin.ErrInvalidConfig, err)
	}
	cfg.applyDefaults()

	return &Classifier[B]{
		env:       env,
		cfg:       cfg,
		criterion: nn.NewCrossEntropyLoss[B](),
		nets:      plugin.NewNets[B](),
		losses:    plugin.NewLosses[B](),
		results:   plugin.NewResults(),
		visuals:   plugin.NewVisuals(),
	}, nil
}

// Name returns the registry name.
func (c *Classifier[B]) Name() string { return "classifier" }

// Defaults returns the experiment defaults for classifier training.
func (c *Classifier[B]) Defaults() plugin.Defaults {
	return plugin.Defaults{
		BatchSizeTrain: 128,
		Optimizer:      "adam",
		LearningRate:   1e-4,
		Epochs:         200,
		SaveOnLowest:   "classifier",
	}
}

// Build validates the configuration and constructs the network.
func (c *Classifier[B]) Build() error {
	if err := c.cfg.validate(); err != nil {
		return err
	}

	dims := make([]int, 0, len(c.cfg.DimH)+2)
	dims = append(dims, c.cfg.DimInput)
	dims = append(dims, c.cfg.DimH...)
	dims = append(dims, c.cfg.NumClasses)

	net, err := nn.NewFullyConnected[B](dims, "relu", "", c.env.RNG, c.env.Backend)
	if err != nil {
		return fmt.Errorf("%w: %v", plugin.ErrInvalidConfig, err)
	}
	c.nets.Set("classifier", net)
	return nil
}

// Routine computes the cross-entropy loss and accuracy for one batch. The
// batch must be labeled.
func (c *Classifier[B]) Routine(batch *plugin.Batch[B], mode plugin.Mode) error {
	if batch.Targets == nil {
		return fmt.Errorf("classifier routine: batch has no targets")
	}

	logits := c.nets.Get("classifier").Forward(batch.Inputs)
	loss := c.criterion.Forward(logits, batch.Targets)
	c.losses.Set("classifier", loss)

	accuracy, err := metrics.Accuracy(logits.Raw(), batch.Targets.Raw())
	if err != nil {
		return fmt.Errorf("classifier routine: %w", err)
	}
	c.results.Set("accuracy", accuracy)
	return nil
}

// Predict returns log class probabilities for a batch of inputs.
func (c *Classifier[B]) Predict(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	logits := c.nets.Get("classifier").Forward(inputs)
	return nn.LogSoftmax(logits, 1)
}

// Visualize records the input batch and a scatter of the logits labeled by
// target class.
func (c *Classifier[B]) Visualize(batch *plugin.Batch[B]) error {
	c.visuals.AddImage(batch.Inputs.Raw(), "ground truth")

	var labels []int32
	if batch.Targets != nil {
		labels = batch.Targets.Data()
	}
	logits := c.nets.Get("classifier").Forward(batch.Inputs)
	c.visuals.AddScatter(logits.Raw(), labels, "logits")
	return nil
}

// Nets returns the named-network container.
func (c *Classifier[B]) Nets() *plugin.Nets[B] { return c.nets }

// Losses returns the per-batch loss container.
func (c *Classifier[B]) Losses() *plugin.Losses[B] { return c.losses }

// Results returns the per-batch metric container.
func (c *Classifier[B]) Results() *plugin.Results { return c.results }

// Visuals returns the inspection-artifact container.
func (c *Classifier[B]) Visuals() *plugin.Visuals { return c.visuals }

func init() {
	plugin.MustRegister("classifier", func(env plugin.Env[plugin.TrainingBackend]) (plugin.ModelPlugin[plugin.TrainingBackend], error) {
		return New(env)
	})
}
