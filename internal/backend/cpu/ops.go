package cpu

import (
	"github.com/lumen-ml/lumen/internal/tensor"
)

// elementwiseLoop applies f over two same-shape operands.
func elementwiseLoop[T float32 | float64](result, a, b []T, f func(x, y T) T) {
	for i := range result {
		result[i] = f(a[i], b[i])
	}
}

// broadcastLoop applies f over operands broadcast to outShape.
func broadcastLoop[T float32 | float64](result, a, b []T, aShape, bShape, outShape tensor.Shape, f func(x, y T) T) {
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	outStrides := outShape.ComputeStrides()

	for i := range result {
		result[i] = f(a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}

// broadcastStrides computes strides for reading inShape as if it were
// expanded to outShape: broadcast (size-1 or missing) dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)
	offset := outDim - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}
	return strides
}

// flatIndex maps an output flat index to a source flat index given
// broadcast-adjusted source strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	idx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		idx += coord * inStrides[i]
	}
	return idx
}
