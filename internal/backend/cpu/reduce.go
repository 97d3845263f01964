package cpu

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Sum reduces all elements to a one-element tensor of shape [1].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var total float32
		for _, v := range x.AsFloat32() {
			total += v
		}
		result.AsFloat32()[0] = total
	case tensor.Float64:
		var total float64
		for _, v := range x.AsFloat64() {
			total += v
		}
		result.AsFloat64()[0] = total
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums along a dimension.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages along a dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: invalid dim %d for %dD tensor", name, dim, len(shape)))
	}

	outShape := reducedShape(shape, dim, keepDim)
	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	outer, size, inner := splitAt(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		reduceDimLoop(result.AsFloat32(), x.AsFloat32(), outer, size, inner, mean)
	case tensor.Float64:
		reduceDimLoop(result.AsFloat64(), x.AsFloat64(), outer, size, inner, mean)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func reduceDimLoop[T float32 | float64](dst, src []T, outer, size, inner int, mean bool) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var total T
			for s := 0; s < size; s++ {
				total += src[(o*size+s)*inner+in]
			}
			if mean {
				total /= T(size)
			}
			dst[o*inner+in] = total
		}
	}
}

// Argmax returns int32 indices of the maximum along a dimension.
// Ties resolve to the first maximum.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: invalid dim %d for %dD tensor", dim, len(shape)))
	}

	outShape := reducedShape(shape, dim, false)
	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		argmaxLoop(result.AsInt32(), x.AsFloat32(), outer, size, inner)
	case tensor.Float64:
		argmaxLoop(result.AsInt32(), x.AsFloat64(), outer, size, inner)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	return result
}

func argmaxLoop[T float32 | float64](dst []int32, src []T, outer, size, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			best := src[o*size*inner+in]
			bestIdx := int32(0)
			for s := 1; s < size; s++ {
				if v := src[(o*size+s)*inner+in]; v > best {
					best = v
					bestIdx = int32(s)
				}
			}
			dst[o*inner+in] = bestIdx
		}
	}
}

// reducedShape returns shape with dim removed, or kept with size 1. A full
// reduction of a 1D tensor yields shape [1] rather than a 0D scalar.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	out = append(out, shape[dim+1:]...)
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}

// splitAt factors shape into [outer, shape[dim], inner].
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, size, inner = 1, shape[dim], 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, size, inner
}
