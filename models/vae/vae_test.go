package vae

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

type testBackend = plugin.TrainingBackend

func newTestVAE(t *testing.T, seed int64, args map[string]any) *VAE[testBackend] {
	t.Helper()
	merged := map[string]any{
		"dim_input":       16,
		"dim_z":           4,
		"dim_encoder_out": 32,
	}
	for k, v := range args {
		merged[k] = v
	}
	v, err := New(plugin.Env[testBackend]{
		Backend:   autodiff.New(cpu.New()),
		RNG:       rand.New(rand.NewSource(seed)),
		ModelArgs: merged,
	})
	require.NoError(t, err)
	require.NoError(t, v.Build())
	return v
}

func randomBatch(t *testing.T, v *VAE[testBackend], batchSize int, labeled bool) *plugin.Batch[testBackend] {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	inputs := tensor.Randn[float32](tensor.Shape{batchSize, v.cfg.DimInput}, rng, v.env.Backend)

	var targets *tensor.Tensor[int32, testBackend]
	if labeled {
		labels := make([]int32, batchSize)
		for i := range labels {
			labels[i] = int32(i % 3)
		}
		var err error
		targets, err = tensor.FromSlice(labels, tensor.Shape{batchSize}, v.env.Backend)
		require.NoError(t, err)
	}
	return &plugin.Batch[testBackend]{Inputs: inputs, Targets: targets}
}

func TestVAE_Registered(t *testing.T) {
	_, err := plugin.Lookup("vae")
	assert.NoError(t, err)
}

func TestVAE_Defaults(t *testing.T) {
	v := newTestVAE(t, 1, nil)
	d := v.Defaults()
	assert.Equal(t, 64, d.BatchSizeTrain)
	assert.Equal(t, 640, d.BatchSizeTest)
	assert.Equal(t, "adam", d.Optimizer)
	assert.InDelta(t, 1e-4, d.LearningRate, 1e-12)
	assert.Equal(t, "vae", d.SaveOnLowest)
}

func TestVAE_ConfigDefaults(t *testing.T) {
	v, err := New(plugin.Env[testBackend]{
		Backend:   autodiff.New(cpu.New()),
		RNG:       rand.New(rand.NewSource(1)),
		ModelArgs: map[string]any{"dim_input": 16},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, v.cfg.DimZ)
	assert.Equal(t, 1024, v.cfg.DimEncoderOut)
	assert.InDelta(t, 1.0, *v.cfg.BetaKLD, 1e-12)
	assert.Equal(t, "tanh", v.cfg.OutputNonlinearity)
}

func TestVAE_Build_InvalidConfig(t *testing.T) {
	cases := map[string]map[string]any{
		"negative dim_z":    {"dim_input": 16, "dim_z": -1},
		"missing dim_input": {"dim_z": 4},
		"negative beta":     {"dim_input": 16, "beta_kld": -0.5},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := New(plugin.Env[testBackend]{
				Backend:   autodiff.New(cpu.New()),
				RNG:       rand.New(rand.NewSource(1)),
				ModelArgs: args,
			})
			require.NoError(t, err)
			assert.ErrorIs(t, v.Build(), plugin.ErrInvalidConfig)
		})
	}
}

func TestVAE_New_UnknownArg(t *testing.T) {
	_, err := New(plugin.Env[testBackend]{
		Backend:   autodiff.New(cpu.New()),
		RNG:       rand.New(rand.NewSource(1)),
		ModelArgs: map[string]any{"dim_input": 16, "no_such_option": 3},
	})
	assert.ErrorIs(t, err, plugin.ErrInvalidConfig)
}

func TestVAE_EvalForwardIsDeterministic(t *testing.T) {
	v := newTestVAE(t, 2, nil)
	batch := randomBatch(t, v, 5, false)

	out1 := v.Network().ForwardMode(batch.Inputs, plugin.ModeEval)
	out2 := v.Network().ForwardMode(batch.Inputs, plugin.ModeEval)
	assert.Equal(t, out1.Raw().Data(), out2.Raw().Data())
}

func TestVAE_EvalDecodesLatentMean(t *testing.T) {
	v := newTestVAE(t, 3, nil)
	batch := randomBatch(t, v, 4, false)
	network := v.Network()

	out := network.ForwardMode(batch.Inputs, plugin.ModeEval)

	// In eval mode the latent is exactly mu, and the output is exactly
	// the decoder applied to mu.
	assert.Equal(t, network.Mu().Raw().Data(), network.Latent().Raw().Data())
	direct := network.Decoder().Forward(network.Encode(batch.Inputs))
	assert.Equal(t, direct.Raw().Data(), out.Raw().Data())
}

func TestVAE_TrainForwardSamples(t *testing.T) {
	v := newTestVAE(t, 4, nil)
	batch := randomBatch(t, v, 4, false)
	network := v.Network()

	network.ForwardMode(batch.Inputs, plugin.ModeTrain)
	assert.NotEqual(t, network.Mu().Raw().Data(), network.Latent().Raw().Data())
}

func TestKLDivergence_ZeroAtPrior(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mu := tensor.Zeros[float32](tensor.Shape{3, 2}, backend)
	std := tensor.Ones[float32](tensor.Shape{3, 2}, backend)

	kl := klDivergence(mu, std)
	assert.InDelta(t, 0.0, float64(kl.Item()), 1e-7)
}

func TestKLDivergence_NonNegative(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		mu := tensor.Randn[float32](tensor.Shape{4, 3}, rng, backend)
		// std must be positive; exp of a random tensor mirrors the model.
		std := tensor.Randn[float32](tensor.Shape{4, 3}, rng, backend).Exp()

		kl := klDivergence(mu, std)
		assert.GreaterOrEqual(t, float64(kl.Item()), -1e-6)
	}
}

func TestKLDivergence_HandComputed(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mu, err := tensor.FromSlice([]float32{1, 0, -1, 2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	std, err := tensor.FromSlice([]float32{1, 2, 0.5, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	// Per-element terms 0.5*(std² + mu² - 2·ln(std) - 1), summed over the
	// latent dim and averaged over the batch.
	row0 := 0.5 * ((1.0 + 1.0 - 0.0 - 1.0) + (4.0 + 0.0 - 2.0*math.Log(2) - 1.0))
	row1 := 0.5 * ((0.25 + 1.0 - 2.0*math.Log(0.5) - 1.0) + (1.0 + 4.0 - 0.0 - 1.0))
	want := (row0 + row1) / 2

	kl := klDivergence(mu, std)
	assert.InDelta(t, want, float64(kl.Item()), 1e-5)
}

func TestVAE_Routine_SetsLossAndMetrics(t *testing.T) {
	v := newTestVAE(t, 5, nil)
	batch := randomBatch(t, v, 6, false)

	require.NoError(t, v.Routine(batch, plugin.ModeEval))

	loss := v.Losses().Get("vae")
	require.NotNil(t, loss)
	assert.False(t, math.IsNaN(float64(loss.Item())))

	kl, ok := v.Results().Get("KL_divergence")
	require.True(t, ok)
	assert.GreaterOrEqual(t, kl, -1e-6)

	_, ok = v.Results().Get("ms_ssim")
	assert.True(t, ok)
}

func TestVAE_Routine_BatchPermutationInvariant(t *testing.T) {
	v := newTestVAE(t, 6, nil)
	batch := randomBatch(t, v, 4, false)

	require.NoError(t, v.Routine(batch, plugin.ModeEval))
	original := float64(v.Losses().Get("vae").Item())

	// Reverse the sample order.
	dim := v.cfg.DimInput
	data := batch.Inputs.Data()
	permuted := make([]float32, len(data))
	for i := 0; i < 4; i++ {
		copy(permuted[i*dim:(i+1)*dim], data[(3-i)*dim:(4-i)*dim])
	}
	inputs, err := tensor.FromSlice(permuted, tensor.Shape{4, dim}, v.env.Backend)
	require.NoError(t, err)

	v.Losses().Clear()
	require.NoError(t, v.Routine(&plugin.Batch[testBackend]{Inputs: inputs}, plugin.ModeEval))
	reversed := float64(v.Losses().Get("vae").Item())

	assert.InDelta(t, original, reversed, 1e-4)
}

func TestVAE_Routine_BetaScalesKLTerm(t *testing.T) {
	beta2 := 2.0
	low := newTestVAE(t, 7, nil)
	high := newTestVAE(t, 7, map[string]any{"beta_kld": beta2})

	batch := randomBatch(t, low, 4, false)
	require.NoError(t, low.Routine(batch, plugin.ModeEval))
	require.NoError(t, high.Routine(batch, plugin.ModeEval))

	lowLoss := float64(low.Losses().Get("vae").Item())
	highLoss := float64(high.Losses().Get("vae").Item())
	lowKL, _ := low.Results().Get("KL_divergence")

	// Same seed means identical weights, so the losses differ by exactly
	// (beta - 1) * KL.
	assert.InDelta(t, lowLoss+lowKL, highLoss, 1e-4)
}

func TestVAE_Visualize(t *testing.T) {
	v := newTestVAE(t, 8, nil)
	batch := randomBatch(t, v, 4, true)

	require.NoError(t, v.Visualize(batch))

	visuals := v.Visuals()
	require.Len(t, visuals.Images, 3)
	assert.Equal(t, "reconstruction", visuals.Images[0].Name)
	assert.Equal(t, "ground truth", visuals.Images[1].Name)
	assert.Equal(t, "generated", visuals.Images[2].Name)

	require.Len(t, visuals.Scatters, 1)
	scatter := visuals.Scatters[0]
	assert.Equal(t, "latent values", scatter.Name)
	assert.Equal(t, tensor.Shape{4, v.cfg.DimZ}, scatter.Points.Shape())
	assert.Equal(t, []int32{0, 1, 2, 0}, scatter.Labels)
}

func TestVAE_StateDictRoundTrip(t *testing.T) {
	v := newTestVAE(t, 9, nil)
	batch := randomBatch(t, v, 3, false)
	before := v.Network().ForwardMode(batch.Inputs, plugin.ModeEval).Data()

	state := v.Network().StateDict()
	require.NotEmpty(t, state)

	restored := newTestVAE(t, 10, nil)
	require.NoError(t, restored.Network().LoadStateDict(state))
	after := restored.Network().ForwardMode(batch.Inputs, plugin.ModeEval).Data()

	assert.Equal(t, before, after)
}

func TestVAE_TrainingReducesLoss(t *testing.T) {
	v := newTestVAE(t, 12, map[string]any{
		"dim_z":           2,
		"dim_encoder_out": 16,
		"beta_kld":        0.1,
	})
	backend := v.env.Backend
	tape := backend.GetTape()

	rng := rand.New(rand.NewSource(21))
	inputs := tensor.Randn[float32](tensor.Shape{16, 16}, rng, backend)
	batch := &plugin.Batch[testBackend]{Inputs: inputs}

	require.NoError(t, v.Routine(batch, plugin.ModeEval))
	initial := float64(v.Losses().Get("vae").Item())

	params := v.Nets().Parameters()
	for step := 0; step < 60; step++ {
		v.Losses().Clear()
		tape.Clear()
		tape.StartRecording()
		require.NoError(t, v.Routine(batch, plugin.ModeTrain))
		loss := v.Losses().Get("vae")
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()

		for _, p := range params {
			grad, ok := grads[p.Tensor().Raw()]
			if !ok {
				continue
			}
			values := p.Tensor().Data()
			for i, g := range grad.AsFloat32() {
				values[i] -= 1e-3 * g
			}
		}
		tape.Clear()
	}

	v.Losses().Clear()
	require.NoError(t, v.Routine(batch, plugin.ModeEval))
	final := float64(v.Losses().Get("vae").Item())
	assert.Less(t, final, initial)
}
