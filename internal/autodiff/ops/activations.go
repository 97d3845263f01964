package ops

import "github.com/lumen-ml/lumen/internal/tensor"

// ReLUOp: output = max(0, x).
//
// Gradient passes through where x > 0 and is blocked elsewhere.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Backward masks the output gradient by the activation pattern.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), outputGrad.Device())
	if err != nil {
		panic(err)
	}

	switch op.input.DType() {
	case tensor.Float32:
		in, m := op.input.AsFloat32(), mask.AsFloat32()
		for i, v := range in {
			if v > 0 {
				m[i] = 1
			}
		}
	case tensor.Float64:
		in, m := op.input.AsFloat64(), mask.AsFloat64()
		for i, v := range in {
			if v > 0 {
				m[i] = 1
			}
		}
	default:
		panic("relu backward: unsupported dtype")
	}

	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor { return op.output }

// SigmoidOp: output = σ(x) = 1/(1+exp(-x)).
//
// dσ/dx = σ(x)·(1-σ(x)).
type SigmoidOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{input: input, output: output}
}

// Backward computes the input gradient for sigmoid.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	one := onesLike(op.output, outputGrad.Device())
	grad := backend.Mul(op.output, backend.Sub(one, op.output))
	return []*tensor.RawTensor{backend.Mul(outputGrad, grad)}
}

// Inputs returns [x].
func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns σ(x).
func (op *SigmoidOp) Output() *tensor.RawTensor { return op.output }

// TanhOp: output = tanh(x).
//
// d(tanh(x))/dx = 1 - tanh²(x).
type TanhOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{input: input, output: output}
}

// Backward computes the input gradient for tanh.
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	one := onesLike(op.output, outputGrad.Device())
	grad := backend.Sub(one, backend.Mul(op.output, op.output))
	return []*tensor.RawTensor{backend.Mul(outputGrad, grad)}
}

// Inputs returns [x].
func (op *TanhOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns tanh(x).
func (op *TanhOp) Output() *tensor.RawTensor { return op.output }

// SoftmaxOp: output = softmax(x) along dim.
//
// dx_j = y_j·(dy_j − Σ_i dy_i·y_i) along the softmax dimension.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates a SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output, dim: dim}
}

// Backward computes the input gradient for softmax.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dot := backend.SumDim(backend.Mul(outputGrad, op.output), op.dim, true)
	grad := backend.Mul(op.output, backend.Sub(outputGrad, dot))
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns softmax(x).
func (op *SoftmaxOp) Output() *tensor.RawTensor { return op.output }
