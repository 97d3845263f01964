// Package ops defines the differentiable operations recorded on the
// gradient tape. Each operation keeps references to its forward-pass input
// and output tensors and knows how to turn an output gradient into input
// gradients.
package ops

import "github.com/lumen-ml/lumen/internal/tensor"

// Operation is one node of the recorded computation graph.
type Operation interface {
	// Backward computes gradients for the inputs given the output gradient.
	// The returned slice is index-aligned with Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor produced by this operation.
	Output() *tensor.RawTensor
}
