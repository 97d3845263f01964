package optim_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/optim"
	"github.com/lumen-ml/lumen/internal/tensor"
)

type cpuAutodiff = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// newParam creates a single-parameter setup with a hand-built gradient.
func newParam(t *testing.T, backend cpuAutodiff, values, gradValues []float32) (*nn.Parameter[cpuAutodiff], map[*tensor.RawTensor]*tensor.RawTensor) {
	t.Helper()

	pt, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("weight", pt)

	grad, err := tensor.NewRaw(tensor.Shape{len(gradValues)}, tensor.Float32, backend.Device())
	require.NoError(t, err)
	copy(grad.AsFloat32(), gradValues)

	return param, map[*tensor.RawTensor]*tensor.RawTensor{pt.Raw(): grad}
}

func TestSGD_Step(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param, grads := newParam(t, backend, []float32{1, 2}, []float32{0.5, 1})

	sgd := optim.NewSGD([]*nn.Parameter[cpuAutodiff]{param}, optim.SGDConfig{LR: 0.1}, backend)
	sgd.Step(grads)

	// param -= lr * grad
	assert.InDelta(t, 0.95, float64(param.Tensor().Data()[0]), 1e-6)
	assert.InDelta(t, 1.9, float64(param.Tensor().Data()[1]), 1e-6)
}

func TestSGD_Momentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param, grads := newParam(t, backend, []float32{1}, []float32{1})

	sgd := optim.NewSGD([]*nn.Parameter[cpuAutodiff]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// Step 1: velocity = 1, param = 1 - 0.1
	sgd.Step(grads)
	assert.InDelta(t, 0.9, float64(param.Tensor().Data()[0]), 1e-6)

	// Step 2: velocity = 0.9 + 1 = 1.9, param = 0.9 - 0.19
	sgd.Step(grads)
	assert.InDelta(t, 0.71, float64(param.Tensor().Data()[0]), 1e-6)
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	pt, err := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("weight", pt)

	sgd := optim.NewSGD([]*nn.Parameter[cpuAutodiff]{param}, optim.SGDConfig{LR: 0.1}, backend)
	sgd.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	assert.Equal(t, float32(5), param.Tensor().Data()[0])
}

func TestSGD_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	sgd := optim.NewSGD(nil, optim.SGDConfig{}, backend)
	assert.Equal(t, float32(0.01), sgd.GetLR())
}

func TestSGD_MomentumStateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param, grads := newParam(t, backend, []float32{1, 1}, []float32{1, 2})

	src := optim.NewSGD([]*nn.Parameter[cpuAutodiff]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	src.Step(grads)

	dst := optim.NewSGD([]*nn.Parameter[cpuAutodiff]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	// Both must produce identical second steps.
	before := append([]float32(nil), param.Tensor().Data()...)
	src.Step(grads)
	afterSrc := append([]float32(nil), param.Tensor().Data()...)

	copy(param.Tensor().Data(), before)
	dst.Step(grads)
	assert.Equal(t, afterSrc, param.Tensor().Data())
}

func TestAdam_FirstStepMagnitude(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param, grads := newParam(t, backend, []float32{1}, []float32{10})

	adam := optim.NewAdam([]*nn.Parameter[cpuAutodiff]{param}, optim.AdamConfig{LR: 0.001}, backend)
	adam.Step(grads)

	// The bias-corrected first Adam step has magnitude ~lr regardless of
	// gradient scale.
	assert.InDelta(t, 1.0-0.001, float64(param.Tensor().Data()[0]), 1e-5)
}

func TestAdam_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	adam := optim.NewAdam(nil, optim.AdamConfig{}, backend)
	assert.Equal(t, float32(0.001), adam.GetLR())
}

func TestAdam_ConvergesOnQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	pt, err := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("x", pt)

	adam := optim.NewAdam([]*nn.Parameter[cpuAutodiff]{param}, optim.AdamConfig{LR: 0.1}, backend)

	// Minimize f(x) = x² by gradient descent.
	for i := 0; i < 500; i++ {
		backend.Tape().Clear()
		x := param.Tensor()
		loss := x.Mul(x)
		grads := autodiff.Backward(loss, backend)
		adam.Step(grads)
		adam.ZeroGrad()
	}

	assert.InDelta(t, 0.0, float64(param.Tensor().Data()[0]), 1e-2)
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param, grads := newParam(t, backend, []float32{1, 2}, []float32{0.3, -0.7})

	src := optim.NewAdam([]*nn.Parameter[cpuAutodiff]{param}, optim.AdamConfig{LR: 0.01}, backend)
	src.Step(grads)
	src.Step(grads)

	dst := optim.NewAdam([]*nn.Parameter[cpuAutodiff]{param}, optim.AdamConfig{LR: 0.01}, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	before := append([]float32(nil), param.Tensor().Data()...)
	src.Step(grads)
	afterSrc := append([]float32(nil), param.Tensor().Data()...)

	copy(param.Tensor().Data(), before)
	dst.Step(grads)
	for i := range afterSrc {
		assert.InDelta(t, float64(afterSrc[i]), float64(param.Tensor().Data()[i]), 1e-7)
	}
}

func TestOptimizer_TrainsLinearModel(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(7))

	// Fit y = 2x with a single linear layer.
	layer := nn.NewLinear(1, 1, rng, backend)
	mse := nn.NewMSELoss[cpuAutodiff](nn.ReductionMean)
	sgd := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.1}, backend)

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{2, 4, 6, 8}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	for i := 0; i < 500; i++ {
		backend.Tape().Clear()
		loss := mse.Forward(layer.Forward(input), target)
		grads := autodiff.Backward(loss, backend)
		sgd.Step(grads)
		sgd.ZeroGrad()
	}

	assert.InDelta(t, 2.0, float64(layer.Weight().Tensor().Data()[0]), 0.05)
}
