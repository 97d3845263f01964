package ops

import (
	"github.com/lumen-ml/lumen/internal/tensor"
)

// reduceBroadcast sums grad down to targetShape, undoing any broadcasting
// that happened in the forward pass. Broadcast dimensions received copies of
// the same value, so their gradients accumulate by summation.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// Collapse extra leading dimensions.
	for len(grad.Shape()) > len(targetShape) {
		grad = backend.SumDim(grad, 0, false)
	}

	// Collapse dimensions that were expanded from size 1.
	for i, dim := range targetShape {
		if dim == 1 && grad.Shape()[i] != 1 {
			grad = backend.SumDim(grad, i, true)
		}
	}

	return grad
}

// onesLike returns a tensor of ones with the same shape and dtype as x.
func onesLike(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), device)
	if err != nil {
		panic(err)
	}
	switch x.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic("onesLike: unsupported dtype")
	}
	return result
}
