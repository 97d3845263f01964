package ops

import "github.com/lumen-ml/lumen/internal/tensor"

// SumOp: output = Σ x (full reduction to shape [1]).
//
// Every input element contributed with weight 1, so the scalar output
// gradient broadcasts to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward broadcasts the output gradient across the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	ones := onesLike(op.input, outputGrad.Device())
	return []*tensor.RawTensor{backend.Mul(ones, outputGrad)}
}

// Inputs returns [x].
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the one-element sum.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// SumDimOp: output = Σ x along dim.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{input: input, output: output, dim: dim, keepDim: keepDim}
}

// Backward broadcasts the output gradient back along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{spreadAlongDim(outputGrad, op.input, op.dim, op.keepDim, 1, backend)}
}

// Inputs returns [x].
func (op *SumDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the reduced tensor.
func (op *SumDimOp) Output() *tensor.RawTensor { return op.output }

// MeanDimOp: output = mean of x along dim.
//
// Like SumDimOp with the broadcast gradient scaled by 1/n.
type MeanDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewMeanDimOp creates a MeanDimOp.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{input: input, output: output, dim: dim, keepDim: keepDim}
}

// Backward broadcasts the scaled output gradient along the reduced dimension.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	n := op.input.Shape()[op.dim]
	return []*tensor.RawTensor{spreadAlongDim(outputGrad, op.input, op.dim, op.keepDim, 1.0/float32(n), backend)}
}

// Inputs returns [x].
func (op *MeanDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the reduced tensor.
func (op *MeanDimOp) Output() *tensor.RawTensor { return op.output }

// spreadAlongDim expands a reduced gradient back to the input's shape,
// scaling each copy by scale.
func spreadAlongDim(grad, input *tensor.RawTensor, dim int, keepDim bool, scale float32, backend tensor.Backend) *tensor.RawTensor {
	inShape := input.Shape()

	// Reinsert the reduced dimension as size 1 so broadcasting can expand it.
	if !keepDim {
		withDim := make(tensor.Shape, 0, len(inShape))
		withDim = append(withDim, inShape[:dim]...)
		withDim = append(withDim, 1)
		withDim = append(withDim, inShape[dim+1:]...)
		grad = backend.Reshape(grad, withDim)
	}

	ones := onesLike(input, grad.Device())
	spread := backend.Mul(ones, grad)
	if scale != 1 {
		spread = backend.MulScalar(spread, scale)
	}
	return spread
}
