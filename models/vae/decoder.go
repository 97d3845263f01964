package vae

import (
	"math/rand"

	"github.com/lumen-ml/lumen/internal/metrics"
	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// ImageDecoder builds and owns the decoder network mapping latent vectors
// back to flattened images.
type ImageDecoder[B tensor.Backend] struct {
	net       nn.Module[B]
	criterion *nn.MSELoss[B]
}

// BuildImageDecoder constructs a fully connected decoder
// dimIn -> hidden... -> dimOut with ReLU hidden activations and the given
// output nonlinearity (tanh keeps outputs in the [-1, 1] pixel range).
func BuildImageDecoder[B tensor.Backend](dimIn int, hidden []int, dimOut int, outputNonlinearity string, rng *rand.Rand, backend B) (*ImageDecoder[B], error) {
	dims := make([]int, 0, len(hidden)+2)
	dims = append(dims, dimIn)
	dims = append(dims, hidden...)
	dims = append(dims, dimOut)

	net, err := nn.NewFullyConnected[B](dims, "relu", outputNonlinearity, rng, backend)
	if err != nil {
		return nil, err
	}
	return &ImageDecoder[B]{
		net:       net,
		criterion: nn.NewMSELoss[B](nn.ReductionSum),
	}, nil
}

// Net returns the underlying decoder module.
func (d *ImageDecoder[B]) Net() nn.Module[B] { return d.net }

// Decode runs the decoder on a batch of latent vectors.
func (d *ImageDecoder[B]) Decode(latent *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return d.net.Forward(latent)
}

// Routine computes the standalone decoder loss against target images and
// records the ms_ssim metric, for training the decoder on externally drawn
// latents.
func (d *ImageDecoder[B]) Routine(inputs, latent *tensor.Tensor[float32, B], losses *plugin.Losses[B], results *plugin.Results) error {
	decoded := d.Decode(latent)
	losses.Set("decoder", d.criterion.Forward(decoded, inputs))

	msssim, err := metrics.MSSSIM(inputs.Raw(), decoded.Raw(), metrics.DefaultConfig())
	if err != nil {
		return err
	}
	results.Set("ms_ssim", msssim)
	return nil
}

// Visualize decodes a batch of latents and records it as the "generated"
// image batch.
func (d *ImageDecoder[B]) Visualize(visuals *plugin.Visuals, latent *tensor.Tensor[float32, B]) {
	visuals.AddImage(d.Decode(latent).Raw(), "generated")
}
