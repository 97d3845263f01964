// Package vae implements the variational autoencoder model plugin.
//
// A generative model trained with the variational lower bound on the
// log-likelihood. See Kingma & Welling, "Auto-Encoding Variational Bayes"
// (arXiv:1312.6114).
package vae

import (
	"fmt"
	"math/rand"

	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Network is the VAE forward graph: an encoder feeding two linear heads for
// the latent mean and log-variance, a reparameterized latent sample, and a
// decoder.
//
// The mu, std and latent accessors return the values of the most recent
// forward pass; the routine reads them to assemble the KL term.
type Network[B tensor.Backend] struct {
	encoder    nn.Module[B]
	decoder    nn.Module[B]
	muHead     *nn.Linear[B]
	logvarHead *nn.Linear[B]
	relu       *nn.ReLU[B]

	rng     *rand.Rand
	backend B

	mu     *tensor.Tensor[float32, B]
	std    *tensor.Tensor[float32, B]
	latent *tensor.Tensor[float32, B]
}

// NewNetwork wires a VAE network from an encoder and decoder. dimEncoderOut
// is the encoder's output width; dimZ is the latent dimension.
func NewNetwork[B tensor.Backend](encoder, decoder nn.Module[B], dimEncoderOut, dimZ int, rng *rand.Rand, backend B) *Network[B] {
	return &Network[B]{
		encoder:    encoder,
		decoder:    decoder,
		muHead:     nn.NewLinear[B](dimEncoderOut, dimZ, rng, backend),
		logvarHead: nn.NewLinear[B](dimEncoderOut, dimZ, rng, backend),
		relu:       nn.NewReLU[B](),
		rng:        rng,
		backend:    backend,
	}
}

// Encode maps inputs to their latent means without sampling.
func (n *Network[B]) Encode(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	encoded := n.relu.Forward(n.encoder.Forward(inputs))
	return n.muHead.Forward(encoded)
}

// Reparameterize draws the latent sample. In training mode it returns
// mu + std*eps with eps ~ N(0, 1); in eval mode it returns mu unchanged so
// inference is deterministic.
func (n *Network[B]) Reparameterize(mu, std *tensor.Tensor[float32, B], mode plugin.Mode) *tensor.Tensor[float32, B] {
	if mode != plugin.ModeTrain {
		return mu
	}
	eps := tensor.Randn[float32](std.Shape(), n.rng, n.backend)
	return mu.Add(std.Mul(eps))
}

// ForwardMode runs the full pass: encode, sample a latent according to the
// mode, decode. The std head exponentiates its pre-activation directly, so
// the head learns log(std) rather than log(variance).
func (n *Network[B]) ForwardMode(input *tensor.Tensor[float32, B], mode plugin.Mode) *tensor.Tensor[float32, B] {
	encoded := n.relu.Forward(n.encoder.Forward(input))
	n.mu = n.muHead.Forward(encoded)
	n.std = n.logvarHead.Forward(encoded).Exp()
	n.latent = n.Reparameterize(n.mu, n.std, mode)
	return n.decoder.Forward(n.latent)
}

// Forward is the deterministic pass (decode the latent mean), satisfying
// the module interface.
func (n *Network[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return n.ForwardMode(input, plugin.ModeEval)
}

// Mu returns the latent means of the last forward pass.
func (n *Network[B]) Mu() *tensor.Tensor[float32, B] { return n.mu }

// Std returns the latent standard deviations of the last forward pass.
func (n *Network[B]) Std() *tensor.Tensor[float32, B] { return n.std }

// Latent returns the latent sample of the last forward pass.
func (n *Network[B]) Latent() *tensor.Tensor[float32, B] { return n.latent }

// Decoder returns the decoder module.
func (n *Network[B]) Decoder() nn.Module[B] { return n.decoder }

// Parameters returns all trainable parameters.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, n.encoder.Parameters()...)
	params = append(params, n.muHead.Parameters()...)
	params = append(params, n.logvarHead.Parameters()...)
	params = append(params, n.decoder.Parameters()...)
	return params
}

// StateDict returns all parameters keyed by component prefix.
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for prefix, module := range n.components() {
		for name, raw := range module.StateDict() {
			state[prefix+"."+name] = raw
		}
	}
	return state
}

// LoadStateDict restores all parameters from a prefixed state dict.
func (n *Network[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, module := range n.components() {
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if len(name) > len(prefix)+1 && name[:len(prefix)] == prefix && name[len(prefix)] == '.' {
				sub[name[len(prefix)+1:]] = raw
			}
		}
		if err := module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("vae network %s: %w", prefix, err)
		}
	}
	return nil
}

func (n *Network[B]) components() map[string]nn.Module[B] {
	return map[string]nn.Module[B]{
		"encoder": n.encoder,
		"mu":      n.muHead,
		"logvar":  n.logvarHead,
		"decoder": n.decoder,
	}
}
