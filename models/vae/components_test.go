package vae

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

func TestImageEncoder_Encode(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))

	encoder, err := BuildImageEncoder(8, []int{12}, 6, rng, backend)
	require.NoError(t, err)

	inputs := tensor.Randn[float32](tensor.Shape{3, 8}, rng, backend)
	out := encoder.Encode(inputs)
	assert.Equal(t, tensor.Shape{3, 6}, out.Shape())
}

func TestImageEncoder_Visualize(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(2))

	encoder, err := BuildImageEncoder(8, nil, 4, rng, backend)
	require.NoError(t, err)

	visuals := plugin.NewVisuals()
	latent := tensor.Randn[float32](tensor.Shape{3, 4}, rng, backend)
	encoder.Visualize(visuals, latent.Raw(), []int32{0, 1, 0})

	require.Len(t, visuals.Scatters, 1)
	assert.Equal(t, "latent values", visuals.Scatters[0].Name)
	assert.Equal(t, []int32{0, 1, 0}, visuals.Scatters[0].Labels)
}

func TestImageDecoder_TanhBoundsOutput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))

	decoder, err := BuildImageDecoder(4, []int{12}, 8, "tanh", rng, backend)
	require.NoError(t, err)

	latent := tensor.Randn[float32](tensor.Shape{5, 4}, rng, backend).MulScalar(10)
	decoded := decoder.Decode(latent)
	require.Equal(t, tensor.Shape{5, 8}, decoded.Shape())
	for _, v := range decoded.Data() {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestImageDecoder_Routine(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(4))

	decoder, err := BuildImageDecoder(4, nil, 16, "tanh", rng, backend)
	require.NoError(t, err)

	inputs := tensor.Randn[float32](tensor.Shape{6, 16}, rng, backend)
	latent := tensor.Randn[float32](tensor.Shape{6, 4}, rng, backend)

	losses := plugin.NewLosses[testBackend]()
	results := plugin.NewResults()
	require.NoError(t, decoder.Routine(inputs, latent, losses, results))

	loss := losses.Get("decoder")
	require.NotNil(t, loss)
	assert.Greater(t, float64(loss.Item()), 0.0)

	msssim, ok := results.Get("ms_ssim")
	require.True(t, ok)
	assert.LessOrEqual(t, msssim, 1.0)
}

func TestImageDecoder_Visualize(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(5))

	decoder, err := BuildImageDecoder(4, nil, 8, "tanh", rng, backend)
	require.NoError(t, err)

	visuals := plugin.NewVisuals()
	latent := tensor.Randn[float32](tensor.Shape{3, 4}, rng, backend)
	decoder.Visualize(visuals, latent)

	require.Len(t, visuals.Images, 1)
	assert.Equal(t, "generated", visuals.Images[0].Name)
	assert.Equal(t, tensor.Shape{3, 8}, visuals.Images[0].Batch.Shape())
}

func TestNetwork_ReparameterizeModes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(6))

	encoder, err := BuildImageEncoder(8, nil, 16, rng, backend)
	require.NoError(t, err)
	decoder, err := BuildImageDecoder(4, nil, 8, "tanh", rng, backend)
	require.NoError(t, err)
	network := NewNetwork(encoder.Net(), decoder.Net(), 16, 4, rng, backend)

	mu := tensor.Randn[float32](tensor.Shape{5, 4}, rng, backend)
	std := tensor.Randn[float32](tensor.Shape{5, 4}, rng, backend).Exp()

	// Eval returns the mean untouched; train draws a sample around it.
	assert.Same(t, mu, network.Reparameterize(mu, std, plugin.ModeEval))
	sampled := network.Reparameterize(mu, std, plugin.ModeTrain)
	assert.NotEqual(t, mu.Data(), sampled.Data())
}
