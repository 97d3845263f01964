package vae

import (
	"math/rand"

	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// ImageEncoder builds and owns the encoder network mapping flattened images
// to the pre-latent feature vector.
type ImageEncoder[B tensor.Backend] struct {
	net nn.Module[B]
}

// BuildImageEncoder constructs a fully connected encoder
// dimInput -> hidden... -> dimOut with ReLU hidden activations and a linear
// output; the VAE applies its own ReLU before the latent heads.
func BuildImageEncoder[B tensor.Backend](dimInput int, hidden []int, dimOut int, rng *rand.Rand, backend B) (*ImageEncoder[B], error) {
	dims := make([]int, 0, len(hidden)+2)
	dims = append(dims, dimInput)
	dims = append(dims, hidden...)
	dims = append(dims, dimOut)

	net, err := nn.NewFullyConnected[B](dims, "relu", "", rng, backend)
	if err != nil {
		return nil, err
	}
	return &ImageEncoder[B]{net: net}, nil
}

// Net returns the underlying encoder module.
func (e *ImageEncoder[B]) Net() nn.Module[B] { return e.net }

// Encode runs the encoder.
func (e *ImageEncoder[B]) Encode(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return e.net.Forward(inputs)
}

// Visualize scatters a batch of latent points under the "latent values"
// name, with per-point class labels when the data is labeled.
func (e *ImageEncoder[B]) Visualize(visuals *plugin.Visuals, latent *tensor.RawTensor, labels []int32) {
	visuals.AddScatter(latent, labels, "latent values")
}
