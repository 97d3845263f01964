package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/tensor"
)

func newRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestLinear_ForwardShape(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(4, 3, newRng(), backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 4}, backend)
	output := layer.Forward(input)

	assert.True(t, output.Shape().Equal(tensor.Shape{2, 3}))
}

func TestLinear_ForwardValues(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(2, 2, newRng(), backend)

	// W = [[1, 2], [3, 4]], b = [10, 20]
	copy(layer.Weight().Tensor().Data(), []float32{1, 2, 3, 4})
	copy(layer.Bias().Tensor().Data(), []float32{10, 20})

	input, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)
	// y = x @ Wᵀ + b = [1+2+10, 3+4+20]
	assert.Equal(t, []float32{13, 27}, output.Data())
}

func TestLinear_ForwardPanicsOnBadShape(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(4, 3, newRng(), backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 5}, backend)
	assert.Panics(t, func() { layer.Forward(input) })
}

func TestLinear_Parameters(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(4, 3, newRng(), backend)

	params := layer.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "weight", params[0].Name())
	assert.Equal(t, "bias", params[1].Name())
	assert.True(t, params[0].Tensor().Shape().Equal(tensor.Shape{3, 4}))
	assert.True(t, params[1].Tensor().Shape().Equal(tensor.Shape{3}))
}

func TestLinear_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := nn.NewLinear(3, 2, newRng(), backend)
	dst := nn.NewLinear(3, 2, newRng(), backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())
	assert.Equal(t, src.Bias().Tensor().Data(), dst.Bias().Tensor().Data())
}

func TestLinear_LoadStateDictRejectsBadShape(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(3, 2, newRng(), backend)

	bad := map[string]*tensor.RawTensor{
		"weight": tensor.Zeros[float32](tensor.Shape{4, 4}, backend).Raw(),
		"bias":   tensor.Zeros[float32](tensor.Shape{2}, backend).Raw(),
	}
	assert.Error(t, layer.LoadStateDict(bad))
}

func TestXavier_ValuesWithinBound(t *testing.T) {
	backend := cpu.New()
	fanIn, fanOut := 100, 50
	w := nn.Xavier(fanIn, fanOut, tensor.Shape{fanOut, fanIn}, newRng(), backend)

	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}

func TestActivations_Values(t *testing.T) {
	backend := cpu.New()
	input, err := tensor.FromSlice([]float32{-2, 0, 2}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	t.Run("relu", func(t *testing.T) {
		out := nn.NewReLU[*cpu.CPUBackend]().Forward(input)
		assert.Equal(t, []float32{0, 0, 2}, out.Data())
	})

	t.Run("sigmoid", func(t *testing.T) {
		out := nn.NewSigmoid[*cpu.CPUBackend]().Forward(input)
		assert.InDelta(t, 0.5, float64(out.Data()[1]), 1e-6)
		assert.InDelta(t, 1.0/(1.0+math.Exp(2)), float64(out.Data()[0]), 1e-6)
	})

	t.Run("tanh", func(t *testing.T) {
		out := nn.NewTanh[*cpu.CPUBackend]().Forward(input)
		assert.InDelta(t, 0.0, float64(out.Data()[1]), 1e-6)
		assert.InDelta(t, math.Tanh(2), float64(out.Data()[2]), 1e-6)
	})

	t.Run("identity", func(t *testing.T) {
		out := nn.NewIdentity[*cpu.CPUBackend]().Forward(input)
		assert.Equal(t, input.Data(), out.Data())
	})
}

func TestNewActivation(t *testing.T) {
	for _, name := range []string{"relu", "sigmoid", "tanh", "identity"} {
		_, err := nn.NewActivation[*cpu.CPUBackend](name)
		assert.NoError(t, err, name)
	}

	_, err := nn.NewActivation[*cpu.CPUBackend]("softplus")
	assert.Error(t, err)
}

func TestSequential_ForwardAndParameters(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	model := nn.NewSequential[*cpu.CPUBackend](
		nn.NewLinear(4, 8, rng, backend),
		nn.NewReLU[*cpu.CPUBackend](),
		nn.NewLinear(8, 2, rng, backend),
	)

	assert.Equal(t, 3, model.Len())
	assert.Len(t, model.Parameters(), 4)

	input := tensor.Zeros[float32](tensor.Shape{5, 4}, backend)
	output := model.Forward(input)
	assert.True(t, output.Shape().Equal(tensor.Shape{5, 2}))
}

func TestSequential_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	build := func() *nn.Sequential[*cpu.CPUBackend] {
		rng := newRng()
		return nn.NewSequential[*cpu.CPUBackend](
			nn.NewLinear(3, 4, rng, backend),
			nn.NewTanh[*cpu.CPUBackend](),
			nn.NewLinear(4, 2, rng, backend),
		)
	}

	src := build()
	for _, p := range src.Parameters() {
		for i := range p.Tensor().Data() {
			p.Tensor().Data()[i] = float32(i) * 0.1
		}
	}

	dst := build()
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	srcParams := src.Parameters()
	dstParams := dst.Parameters()
	require.Equal(t, len(srcParams), len(dstParams))
	for i := range srcParams {
		assert.Equal(t, srcParams[i].Tensor().Data(), dstParams[i].Tensor().Data())
	}
}

func TestMSELoss_MeanReduction(t *testing.T) {
	backend := cpu.New()
	pred, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	loss := nn.NewMSELoss[*cpu.CPUBackend](nn.ReductionMean).Forward(pred, target)
	// (1 + 4 + 9 + 16) / 4
	assert.InDelta(t, 7.5, float64(loss.Item()), 1e-6)
}

func TestMSELoss_SumReduction(t *testing.T) {
	backend := cpu.New()
	pred, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	loss := nn.NewMSELoss[*cpu.CPUBackend](nn.ReductionSum).Forward(pred, target)
	// (1 + 4 + 9 + 16) / batch_size
	assert.InDelta(t, 15.0, float64(loss.Item()), 1e-6)
}

func TestMSELoss_GradientFlows(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	pred, err := tensor.FromSlice([]float32{1, 3}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0, 0}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	loss := nn.NewMSELoss[*autodiff.AutodiffBackend[*cpu.CPUBackend]](nn.ReductionSum).Forward(pred, target)
	grads := autodiff.Backward(loss, backend)

	dPred := grads[pred.Raw()]
	require.NotNil(t, dPred)
	// d/dp sum((p - t)²)/batch = 2(p - t)/batch with batch=1
	assert.InDelta(t, 2.0, float64(dPred.AsFloat32()[0]), 1e-6)
	assert.InDelta(t, 6.0, float64(dPred.AsFloat32()[1]), 1e-6)
}

func TestCrossEntropyLoss_UniformLogits(t *testing.T) {
	backend := autodiff.New(cpu.New())

	logits, err := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	targets, err := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	loss := nn.NewCrossEntropyLoss[*autodiff.AutodiffBackend[*cpu.CPUBackend]]().Forward(logits, targets)
	assert.InDelta(t, math.Log(2), float64(loss.Item()), 1e-5)
}

func TestParseReduction(t *testing.T) {
	r, err := nn.ParseReduction("sum")
	require.NoError(t, err)
	assert.Equal(t, nn.ReductionSum, r)

	r, err = nn.ParseReduction("mean")
	require.NoError(t, err)
	assert.Equal(t, nn.ReductionMean, r)

	_, err = nn.ParseReduction("max")
	assert.Error(t, err)
}

func TestNewFullyConnected(t *testing.T) {
	backend := cpu.New()

	model, err := nn.NewFullyConnected([]int{6, 10, 4}, "relu", "tanh", newRng(), backend)
	require.NoError(t, err)
	// Linear, ReLU, Linear, Tanh
	assert.Equal(t, 4, model.Len())

	input := tensor.Zeros[float32](tensor.Shape{3, 6}, backend)
	output := model.Forward(input)
	assert.True(t, output.Shape().Equal(tensor.Shape{3, 4}))

	// tanh output stays in (-1, 1)
	for _, v := range output.Data() {
		assert.Less(t, math.Abs(float64(v)), 1.0)
	}
}

func TestNewFullyConnected_IdentityOutputOmitted(t *testing.T) {
	backend := cpu.New()

	model, err := nn.NewFullyConnected([]int{6, 10, 4}, "relu", "identity", newRng(), backend)
	require.NoError(t, err)
	// Linear, ReLU, Linear
	assert.Equal(t, 3, model.Len())
}

func TestNewFullyConnected_Errors(t *testing.T) {
	backend := cpu.New()

	_, err := nn.NewFullyConnected([]int{6}, "relu", "tanh", newRng(), backend)
	assert.Error(t, err)

	_, err = nn.NewFullyConnected([]int{6, 0, 4}, "relu", "tanh", newRng(), backend)
	assert.Error(t, err)

	_, err = nn.NewFullyConnected([]int{6, 10, 4}, "relu", "swish", newRng(), backend)
	assert.Error(t, err)
}
