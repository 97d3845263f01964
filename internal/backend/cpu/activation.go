package cpu

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Softmax applies a max-shifted softmax along a dimension.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("softmax: invalid dim %d for %dD tensor", dim, len(shape)))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		softmaxLoop(result.AsFloat32(), x.AsFloat32(), outer, size, inner, false)
	case tensor.Float64:
		softmaxLoop(result.AsFloat64(), x.AsFloat64(), outer, size, inner, false)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	return result
}

// LogSoftmax applies log(softmax(x)) along a dimension using the
// log-sum-exp trick.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("logsoftmax: invalid dim %d for %dD tensor", dim, len(shape)))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("logsoftmax: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		softmaxLoop(result.AsFloat32(), x.AsFloat32(), outer, size, inner, true)
	case tensor.Float64:
		softmaxLoop(result.AsFloat64(), x.AsFloat64(), outer, size, inner, true)
	default:
		panic(fmt.Sprintf("logsoftmax: unsupported dtype %s", x.DType()))
	}

	return result
}

func softmaxLoop[T float32 | float64](dst, src []T, outer, size, inner int, logspace bool) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			maxVal := src[o*size*inner+in]
			for s := 1; s < size; s++ {
				if v := src[(o*size+s)*inner+in]; v > maxVal {
					maxVal = v
				}
			}

			var total float64
			for s := 0; s < size; s++ {
				total += math.Exp(float64(src[(o*size+s)*inner+in] - maxVal))
			}

			if logspace {
				logTotal := T(math.Log(total))
				for s := 0; s < size; s++ {
					idx := (o*size+s)*inner + in
					dst[idx] = src[idx] - maxVal - logTotal
				}
			} else {
				for s := 0; s < size; s++ {
					idx := (o*size+s)*inner + in
					dst[idx] = T(math.Exp(float64(src[idx]-maxVal)) / total)
				}
			}
		}
	}
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sigmoid", x, func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	})
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x, math.Tanh)
}
