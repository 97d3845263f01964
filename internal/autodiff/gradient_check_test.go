package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// numericalGradient approximates df/dx with central differences.
func numericalGradient(f func(float64) float64, x, epsilon float64) float64 {
	return (f(x+epsilon) - f(x-epsilon)) / (2 * epsilon)
}

// checkGradient compares the recorded gradient of a scalar expression
// against its finite-difference approximation.
func checkGradient(
	t *testing.T,
	build func(x *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]]) *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]],
	reference func(float64) float64,
	point float64,
) {
	t.Helper()

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{point}, tensor.Shape{1}, backend)
	require.NoError(t, err)

	y := build(x)
	require.True(t, y.Shape().Equal(tensor.Shape{1}), "expression must reduce to a scalar")

	grads := autodiff.Backward(y, backend)
	got := grads[x.Raw()].AsFloat64()[0]
	want := numericalGradient(reference, point, 1e-6)

	assert.InDelta(t, want, got, 1e-4, "analytic gradient %v vs numerical %v at x=%v", got, want, point)
}

func TestGradientCheck_Polynomial(t *testing.T) {
	// f(x) = x³ - 2x² + x
	build := func(x *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]]) *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]] {
		return x.Mul(x).Mul(x).Sub(x.Mul(x).MulScalar(2)).Add(x)
	}
	reference := func(v float64) float64 { return v*v*v - 2*v*v + v }

	for _, point := range []float64{-1.5, 0.5, 2.0} {
		checkGradient(t, build, reference, point)
	}
}

func TestGradientCheck_ExpLogComposite(t *testing.T) {
	// f(x) = exp(x)·x - log(x), the shape of a per-dimension
	// Gaussian divergence term. Requires x > 0.
	build := func(x *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]]) *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]] {
		return x.Exp().Mul(x).Sub(x.Log())
	}
	reference := func(v float64) float64 { return math.Exp(v)*v - math.Log(v) }

	for _, point := range []float64{0.3, 1.0, 1.7} {
		checkGradient(t, build, reference, point)
	}
}

func TestGradientCheck_DivSqrt(t *testing.T) {
	// f(x) = sqrt(x) / (x + 1)
	build := func(x *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]]) *tensor.Tensor[float64, *autodiff.AutodiffBackend[*cpu.CPUBackend]] {
		return x.Sqrt().Div(x.AddScalar(1))
	}
	reference := func(v float64) float64 { return math.Sqrt(v) / (v + 1) }

	for _, point := range []float64{0.25, 1.0, 4.0} {
		checkGradient(t, build, reference, point)
	}
}

func TestGradientCheck_ReductionPipeline(t *testing.T) {
	// A miniature loss: mean over a batch of per-sample sums, matching the
	// reduction structure used by the training losses.
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	perSample := x.Mul(x).SumDim(1, false) // (2,)
	loss := perSample.MeanDim(0, false)    // scalar

	grads := autodiff.Backward(loss, backend)
	got := grads[x.Raw()].AsFloat64()

	// d/dx_ij mean_i(sum_j x_ij²) = 2·x_ij / batch
	want := []float64{1, 2, 3, 4, 5, 6}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}
