package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int32:
		one = int32(1)
	case bool:
		one = true
	}

	for i := range data {
		data[i] = one.(T)
	}
	return t
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float tensor with samples from N(0, 1) drawn from rng via
// the Box-Muller transform. math/rand is intentional: ML noise draws want
// seedable reproducibility, not cryptographic strength.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)

	var dummy T
	switch any(dummy).(type) {
	case float32:
		data := any(t.Data()).([]float32)
		for i := 0; i < len(data); i += 2 {
			u1 := rng.Float64()
			u2 := rng.Float64()
			r := math.Sqrt(-2.0 * math.Log(u1))
			data[i] = float32(r * math.Cos(2.0*math.Pi*u2))
			if i+1 < len(data) {
				data[i+1] = float32(r * math.Sin(2.0*math.Pi*u2))
			}
		}
	case float64:
		data := any(t.Data()).([]float64)
		for i := 0; i < len(data); i += 2 {
			u1 := rng.Float64()
			u2 := rng.Float64()
			r := math.Sqrt(-2.0 * math.Log(u1))
			data[i] = r * math.Cos(2.0*math.Pi*u2)
			if i+1 < len(data) {
				data[i+1] = r * math.Sin(2.0*math.Pi*u2)
			}
		}
	default:
		panic("Randn only supports float32 and float64")
	}
	return t
}

// Rand creates a float tensor with samples uniform in [0, 1).
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)

	var dummy T
	switch any(dummy).(type) {
	case float32:
		data := any(t.Data()).([]float32)
		for i := range data {
			data[i] = float32(rng.Float64())
		}
	case float64:
		data := any(t.Data()).([]float64)
		for i := range data {
			data[i] = rng.Float64()
		}
	default:
		panic("Rand only supports float32 and float64")
	}
	return t
}
