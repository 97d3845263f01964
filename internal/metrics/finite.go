package metrics

import (
	"math"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every element of a float tensor is finite.
// Non-float tensors are trivially finite.
func AllFinite(t *tensor.RawTensor) bool {
	switch t.DType() {
	case tensor.Float32:
		for _, v := range t.AsFloat32() {
			if !IsFinite(float64(v)) {
				return false
			}
		}
	case tensor.Float64:
		for _, v := range t.AsFloat64() {
			if !IsFinite(v) {
				return false
			}
		}
	}
	return true
}
