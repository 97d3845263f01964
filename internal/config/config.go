// Package config loads and validates YAML experiment configurations.
//
// An experiment file names the model plugin, its data source, optimizer and
// training settings, plus a free-form model_args section the plugin factory
// decodes itself:
//
//	name: vae-mnist
//	model: vae
//	seed: 42
//	data:
//	  dataset: csv
//	  path: mnist_train.csv
//	  batch_size: {train: 64, test: 640}
//	optimizer:
//	  optimizer: adam
//	  learning_rate: 1.0e-4
//	train:
//	  epochs: 50
//	  save_on_lowest: vae
//	  checkpoint_dir: runs
//	model_args:
//	  dim_z: 64
//	  beta_kld: 1.0
//
// Explicit settings win over the plugin's defaults, which win over the
// package fallbacks. The merged struct is treated as immutable once handed
// to Build.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ml/lumen/internal/plugin"
)

// BatchSize holds train and test mini-batch sizes.
type BatchSize struct {
	Train int `yaml:"train"`
	Test  int `yaml:"test"`
}

// Data configures the dataset source.
type Data struct {
	// Dataset selects the source: "blobs" (synthetic) or "csv".
	Dataset string `yaml:"dataset"`
	// Path locates the CSV file for the csv dataset.
	Path      string    `yaml:"path"`
	BatchSize BatchSize `yaml:"batch_size"`
}

// Optimizer configures the parameter-update rule.
type Optimizer struct {
	// Optimizer selects the algorithm: "adam" or "sgd".
	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	// Momentum applies to sgd only.
	Momentum float64 `yaml:"momentum"`
}

// Train configures the training loop.
type Train struct {
	Epochs int `yaml:"epochs"`
	// SaveOnLowest names the loss whose new minimum triggers a
	// checkpoint. Empty disables checkpointing on improvement.
	SaveOnLowest  string `yaml:"save_on_lowest"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	// HalfPrecision stores checkpoint tensors as float16.
	HalfPrecision bool `yaml:"half_precision"`
}

// Experiment is a full experiment configuration.
type Experiment struct {
	Name      string         `yaml:"name"`
	Model     string         `yaml:"model"`
	Seed      int64          `yaml:"seed"`
	Data      Data           `yaml:"data"`
	Optimizer Optimizer      `yaml:"optimizer"`
	Train     Train          `yaml:"train"`
	ModelArgs map[string]any `yaml:"model_args"`
}

// Load reads and parses an experiment file.
func Load(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	exp, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return exp, nil
}

// Parse decodes an experiment from YAML. Unknown fields are rejected so
// typos fail loudly.
func Parse(raw []byte) (*Experiment, error) {
	var exp Experiment
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// ApplyDefaults fills unset fields from the plugin's defaults, then from
// the package fallbacks.
func (e *Experiment) ApplyDefaults(d plugin.Defaults) {
	if e.Data.BatchSize.Train == 0 {
		e.Data.BatchSize.Train = d.BatchSizeTrain
	}
	if e.Data.BatchSize.Test == 0 {
		e.Data.BatchSize.Test = d.BatchSizeTest
	}
	if e.Optimizer.Optimizer == "" {
		e.Optimizer.Optimizer = d.Optimizer
	}
	if e.Optimizer.LearningRate == 0 {
		e.Optimizer.LearningRate = d.LearningRate
	}
	if e.Train.Epochs == 0 {
		e.Train.Epochs = d.Epochs
	}
	if e.Train.SaveOnLowest == "" {
		e.Train.SaveOnLowest = d.SaveOnLowest
	}

	// Package fallbacks for anything the plugin left open.
	if e.Data.Dataset == "" {
		e.Data.Dataset = "blobs"
	}
	if e.Data.BatchSize.Train == 0 {
		e.Data.BatchSize.Train = 64
	}
	if e.Data.BatchSize.Test == 0 {
		e.Data.BatchSize.Test = e.Data.BatchSize.Train
	}
	if e.Optimizer.Optimizer == "" {
		e.Optimizer.Optimizer = "adam"
	}
	if e.Optimizer.LearningRate == 0 {
		e.Optimizer.LearningRate = 1e-4
	}
	if e.Train.Epochs == 0 {
		e.Train.Epochs = 10
	}
	if e.Train.CheckpointDir == "" {
		e.Train.CheckpointDir = "runs"
	}
	if e.Seed == 0 {
		e.Seed = 42
	}
}

// Validate checks the merged configuration. Call after ApplyDefaults.
func (e *Experiment) Validate() error {
	if e.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if e.Data.Dataset != "blobs" && e.Data.Dataset != "csv" {
		return fmt.Errorf("unknown dataset %q (supported: blobs, csv)", e.Data.Dataset)
	}
	if e.Data.Dataset == "csv" && e.Data.Path == "" {
		return fmt.Errorf("csv dataset requires a path")
	}
	if e.Data.BatchSize.Train <= 0 || e.Data.BatchSize.Test <= 0 {
		return fmt.Errorf("batch sizes must be positive, got train=%d test=%d",
			e.Data.BatchSize.Train, e.Data.BatchSize.Test)
	}
	if e.Optimizer.Optimizer != "adam" && e.Optimizer.Optimizer != "sgd" {
		return fmt.Errorf("unknown optimizer %q (supported: adam, sgd)", e.Optimizer.Optimizer)
	}
	if e.Optimizer.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", e.Optimizer.LearningRate)
	}
	if e.Optimizer.Momentum < 0 || e.Optimizer.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %g", e.Optimizer.Momentum)
	}
	if e.Train.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", e.Train.Epochs)
	}
	return nil
}

// DecodeModelArgs maps the free-form model_args section onto a typed
// configuration struct via a YAML round-trip, so plugin configs use the
// same tag conventions as the rest of the file.
func DecodeModelArgs(args map[string]any, out any) error {
	if args == nil {
		return nil
	}
	raw, err := yaml.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding model args: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decoding model args: %w", err)
	}
	return nil
}
