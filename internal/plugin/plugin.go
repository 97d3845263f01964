// Package plugin defines the model-plugin lifecycle the trainer drives.
//
// A model plugin owns its networks and knows how to compute its losses and
// metrics for a batch. The trainer only sees the lifecycle:
//
//	Build    — construct networks once from an immutable configuration
//	Routine  — compute losses and metrics for one batch
//	Visualize — export inspection artifacts, no gradient tracking
//
// Plugins expose their state through named containers (Nets, Losses,
// Results, Visuals) rather than through inheritance; composition over a
// shared base keeps each plugin's behavior explicit.
package plugin

import (
	"errors"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// ErrInvalidConfig is wrapped by Build when a plugin's configuration is
// missing or out of range (e.g. dim_z <= 0).
var ErrInvalidConfig = errors.New("invalid model configuration")

// Batch is one mini-batch handed to Routine and Visualize. Targets may be
// nil for unlabeled data.
type Batch[B tensor.Backend] struct {
	Inputs  *tensor.Tensor[float32, B]
	Targets *tensor.Tensor[int32, B]
}

// Defaults are the per-plugin experiment defaults the config loader merges
// under explicit configuration. Zero values mean "no opinion".
type Defaults struct {
	BatchSizeTrain int
	BatchSizeTest  int
	Optimizer      string
	LearningRate   float64
	Epochs         int
	// SaveOnLowest names the loss whose improvement triggers a
	// checkpoint, e.g. "vae".
	SaveOnLowest string
}

// ModelPlugin is the contract between a model definition and the training
// framework.
type ModelPlugin[B tensor.Backend] interface {
	// Name returns the registry name of the plugin.
	Name() string

	// Defaults returns the plugin's experiment defaults.
	Defaults() Defaults

	// Build constructs the plugin's networks and registers them in Nets.
	// Called exactly once before any Routine call. Configuration problems
	// return an error wrapping ErrInvalidConfig.
	Build() error

	// Routine computes the plugin's losses and metrics for one batch and
	// stores them in Losses and Results. In ModeTrain the produced loss
	// tensors carry gradient history for the trainer's backward pass.
	Routine(batch *Batch[B], mode Mode) error

	// Visualize fills Visuals with inspection artifacts for the batch.
	// Runs without gradient tracking and must not mutate model state.
	Visualize(batch *Batch[B]) error

	// Nets returns the plugin's named networks.
	Nets() *Nets[B]

	// Losses returns the per-batch loss container.
	Losses() *Losses[B]

	// Results returns the per-batch metric container.
	Results() *Results

	// Visuals returns the inspection-artifact container.
	Visuals() *Visuals
}
