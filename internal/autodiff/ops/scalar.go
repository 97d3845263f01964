package ops

import "github.com/lumen-ml/lumen/internal/tensor"

// scalarKind selects the backward rule for a scalar op.
type scalarKind int

const (
	scalarMul scalarKind = iota
	scalarAdd
	scalarSub
	scalarDiv
)

// ScalarOp covers the element-wise ops with one tensor and one constant
// operand. The constant is not differentiated.
//
//	mul: dx = grad · s
//	add: dx = grad
//	sub: dx = grad
//	div: dx = grad / s
type ScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar any
	kind   scalarKind
}

// NewMulScalarOp creates the tape entry for x · s.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar any) *ScalarOp {
	return &ScalarOp{input: input, output: output, scalar: scalar, kind: scalarMul}
}

// NewAddScalarOp creates the tape entry for x + s.
func NewAddScalarOp(input, output *tensor.RawTensor, scalar any) *ScalarOp {
	return &ScalarOp{input: input, output: output, scalar: scalar, kind: scalarAdd}
}

// NewSubScalarOp creates the tape entry for x - s.
func NewSubScalarOp(input, output *tensor.RawTensor, scalar any) *ScalarOp {
	return &ScalarOp{input: input, output: output, scalar: scalar, kind: scalarSub}
}

// NewDivScalarOp creates the tape entry for x / s.
func NewDivScalarOp(input, output *tensor.RawTensor, scalar any) *ScalarOp {
	return &ScalarOp{input: input, output: output, scalar: scalar, kind: scalarDiv}
}

// Backward computes the input gradient.
func (op *ScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	switch op.kind {
	case scalarMul:
		return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
	case scalarDiv:
		return []*tensor.RawTensor{backend.DivScalar(outputGrad, op.scalar)}
	default: // add, sub: gradient passes through unchanged
		return []*tensor.RawTensor{outputGrad}
	}
}

// Inputs returns [x].
func (op *ScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the op result.
func (op *ScalarOp) Output() *tensor.RawTensor { return op.output }
