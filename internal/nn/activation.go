package nn

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// ReLUBackend is implemented by backends that support the fused ReLU kernel.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is implemented by backends that support the fused Sigmoid
// kernel.
type SigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// TanhBackend is implemented by backends that support the fused Tanh kernel.
type TanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
}

// stateless provides the no-parameter Module methods shared by activation
// modules.
type stateless[B tensor.Backend] struct{}

func (stateless[B]) Parameters() []*Parameter[B]               { return nil }
func (stateless[B]) StateDict() map[string]*tensor.RawTensor   { return map[string]*tensor.RawTensor{} }
func (stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{ stateless[B] }

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if rb, ok := any(backend).(ReLUBackend); ok {
		return tensor.New[float32, B](rb.ReLU(input.Raw()), backend)
	}
	panic("ReLU: backend must implement the ReLU operation (use autodiff.AutodiffBackend)")
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) element-wise, squashing values
// into (0, 1).
type Sigmoid[B tensor.Backend] struct{ stateless[B] }

// NewSigmoid creates a Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if sb, ok := any(backend).(SigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(input.Raw()), backend)
	}
	panic("Sigmoid: backend must implement the Sigmoid operation (use autodiff.AutodiffBackend)")
}

// Tanh applies the hyperbolic tangent element-wise, squashing values into
// (-1, 1).
type Tanh[B tensor.Backend] struct{ stateless[B] }

// NewTanh creates a Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies Tanh activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if tb, ok := any(backend).(TanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(input.Raw()), backend)
	}
	panic("Tanh: backend must implement the Tanh operation (use autodiff.AutodiffBackend)")
}

// Identity passes its input through unchanged. Used as the output
// nonlinearity when a network should emit unbounded values.
type Identity[B tensor.Backend] struct{ stateless[B] }

// NewIdentity creates an Identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns the input unchanged.
func (i *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// NewActivation builds an activation module from its configuration name.
// Supported names: "relu", "sigmoid", "tanh", "identity".
func NewActivation[B tensor.Backend](name string) (Module[B], error) {
	switch name {
	case "relu":
		return NewReLU[B](), nil
	case "sigmoid":
		return NewSigmoid[B](), nil
	case "tanh":
		return NewTanh[B](), nil
	case "identity", "":
		return NewIdentity[B](), nil
	default:
		return nil, fmt.Errorf("unknown activation %q (supported: relu, sigmoid, tanh, identity)", name)
	}
}
