// Copyright 2025 Lumen ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for neural network modules.
package nn

import (
	"math/rand"

	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Module is the common interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable parameter.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear[B](inFeatures, outFeatures, rng, backend)
}

// Sequential chains modules, feeding each output into the next module.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// NewFullyConnected builds a stack of linear layers with the given hidden
// and output activations.
func NewFullyConnected[B tensor.Backend](dims []int, hiddenActivation, outputActivation string, rng *rand.Rand, backend B) (*Sequential[B], error) {
	return nn.NewFullyConnected[B](dims, hiddenActivation, outputActivation, rng, backend)
}

// Activations

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// Sigmoid applies 1/(1+exp(-x)) element-wise.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] { return nn.NewSigmoid[B]() }

// Tanh applies the hyperbolic tangent element-wise.
type Tanh[B tensor.Backend] = nn.Tanh[B]

// NewTanh creates a tanh activation.
func NewTanh[B tensor.Backend]() *Tanh[B] { return nn.NewTanh[B]() }

// Identity passes its input through unchanged.
type Identity[B tensor.Backend] = nn.Identity[B]

// NewIdentity creates an identity activation.
func NewIdentity[B tensor.Backend]() *Identity[B] { return nn.NewIdentity[B]() }

// NewActivation creates an activation module by configuration name.
func NewActivation[B tensor.Backend](name string) (Module[B], error) {
	return nn.NewActivation[B](name)
}

// Losses

// Reduction selects how MSELoss aggregates per-element errors.
type Reduction = nn.Reduction

// Reduction constants.
const (
	ReductionMean Reduction = nn.ReductionMean
	ReductionSum  Reduction = nn.ReductionSum
)

// MSELoss computes squared-error loss.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates an MSE loss with the given reduction.
func NewMSELoss[B tensor.Backend](reduction Reduction) *MSELoss[B] {
	return nn.NewMSELoss[B](reduction)
}

// CrossEntropyLoss computes softmax cross-entropy against integer targets.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates a cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend]() *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss[B]()
}

// LogSoftmax computes log-probabilities along a dimension.
func LogSoftmax[B tensor.Backend](logits *tensor.Tensor[float32, B], dim int) *tensor.Tensor[float32, B] {
	return nn.LogSoftmax(logits, dim)
}
