// Package nn implements neural network modules.
//
// Building blocks for constructing networks:
//   - Module interface: base interface for all components
//   - Parameter: trainable parameters with gradient tracking
//   - Linear: fully connected layer
//   - Activations: ReLU, Sigmoid, Tanh, Identity
//   - Loss functions: MSE, CrossEntropy
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules compose into larger architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(784, 128, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// parameters return nil.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors for
	// serialization. Modules without parameters return an empty map.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies parameter values from a state dictionary.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
