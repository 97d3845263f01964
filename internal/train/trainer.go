// Package train drives the plugin training loop: it owns the backend, the
// data loaders and the optimizer, and runs Build/Routine/Visualize against a
// model plugin according to an experiment configuration.
package train

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/config"
	"github.com/lumen-ml/lumen/internal/data"
	"github.com/lumen-ml/lumen/internal/optim"
	"github.com/lumen-ml/lumen/internal/plugin"
)

// Synthetic blobs dataset dimensions used when no CSV source is configured.
const (
	blobsTrainSamples = 1024
	blobsTestSamples  = 256
	blobsDim          = 64
	blobsClasses      = 4
)

// Trainer runs one experiment: a model plugin, its data and its optimizer.
type Trainer struct {
	cfg     *config.Experiment
	backend plugin.TrainingBackend
	model   plugin.ModelPlugin[plugin.TrainingBackend]
	opt     optim.Optimizer

	trainLoader *data.Loader[plugin.TrainingBackend]
	testLoader  *data.Loader[plugin.TrainingBackend]

	logger *slog.Logger
	runID  string

	// bestLoss tracks the lowest seen mean of the save_on_lowest loss.
	bestLoss float64
	hasBest  bool
}

// New wires a trainer from an experiment configuration. The plugin named by
// cfg.Model must be registered. The configuration is defaulted, validated
// and then treated as immutable.
func New(cfg *config.Experiment, logger *slog.Logger) (*Trainer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	factory, err := plugin.Lookup(cfg.Model)
	if err != nil {
		return nil, err
	}

	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(cfg.Seed))

	trainSet, testSet, err := buildDatasets(cfg, rng)
	if err != nil {
		return nil, err
	}

	model, err := factory(plugin.Env[plugin.TrainingBackend]{
		Backend:   backend,
		RNG:       rng,
		ModelArgs: withDataArgs(cfg.ModelArgs, trainSet),
	})
	if err != nil {
		return nil, fmt.Errorf("creating plugin %q: %w", cfg.Model, err)
	}

	cfg.ApplyDefaults(model.Defaults())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}

	if err := model.Build(); err != nil {
		return nil, fmt.Errorf("building plugin %q: %w", cfg.Model, err)
	}

	opt, err := buildOptimizer(cfg, model, backend)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &Trainer{
		cfg:         cfg,
		backend:     backend,
		model:       model,
		opt:         opt,
		trainLoader: data.NewLoader(trainSet, cfg.Data.BatchSize.Train, true, rng, backend),
		testLoader:  data.NewLoader(testSet, cfg.Data.BatchSize.Test, false, rng, backend),
		logger:      logger.With("run_id", runID, "model", cfg.Model),
		runID:       runID,
	}, nil
}

// Model returns the trainer's plugin, mainly for inspection after Run.
func (t *Trainer) Model() plugin.ModelPlugin[plugin.TrainingBackend] {
	return t.model
}

// buildDatasets constructs the train and test datasets from the experiment's
// data section.
func buildDatasets(cfg *config.Experiment, rng *rand.Rand) (trainSet, testSet *data.Dataset, err error) {
	switch cfg.Data.Dataset {
	case "csv":
		trainSet, err = data.LoadCSV(cfg.Data.Path, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("loading dataset: %w", err)
		}
		// Without a separate test file, evaluate on the training data.
		testSet = trainSet
		return trainSet, testSet, nil
	default:
		trainSet = data.GenerateBlobs(blobsTrainSamples, blobsDim, blobsClasses, rng)
		testSet = data.GenerateBlobs(blobsTestSamples, blobsDim, blobsClasses, rng)
		return trainSet, testSet, nil
	}
}

// withDataArgs copies the model args and fills in the dataset-derived
// entries plugins need unless the experiment set them explicitly.
func withDataArgs(args map[string]any, ds *data.Dataset) map[string]any {
	merged := make(map[string]any, len(args)+2)
	for k, v := range args {
		merged[k] = v
	}
	if _, ok := merged["dim_input"]; !ok {
		merged["dim_input"] = ds.Dim()
	}
	if _, ok := merged["num_classes"]; !ok && ds.Labeled() {
		merged["num_classes"] = ds.NumClasses()
	}
	return merged
}

// buildOptimizer constructs the configured optimizer over all plugin
// network parameters.
func buildOptimizer(cfg *config.Experiment, model plugin.ModelPlugin[plugin.TrainingBackend], backend plugin.TrainingBackend) (optim.Optimizer, error) {
	params := model.Nets().Parameters()
	if len(params) == 0 {
		return nil, fmt.Errorf("plugin %q built no trainable parameters", cfg.Model)
	}

	switch cfg.Optimizer.Optimizer {
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{
			LR: float32(cfg.Optimizer.LearningRate),
		}, backend), nil
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{
			LR:       float32(cfg.Optimizer.LearningRate),
			Momentum: float32(cfg.Optimizer.Momentum),
		}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer.Optimizer)
	}
}
