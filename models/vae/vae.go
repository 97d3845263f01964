package vae

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/config"
	"github.com/lumen-ml/lumen/internal/metrics"
	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Config is the model_args section of a VAE experiment.
type Config struct {
	// DimInput is the flattened image size, normally derived from the
	// dataset.
	DimInput int `yaml:"dim_input"`
	// NumClasses is filled in for labeled data; the VAE itself does not
	// use it beyond scatter labels.
	NumClasses int `yaml:"num_classes"`
	// DimZ is the latent dimension.
	DimZ int `yaml:"dim_z"`
	// DimEncoderOut is the encoder output width feeding the latent heads.
	DimEncoderOut int `yaml:"dim_encoder_out"`
	// DimH lists hidden layer widths for the encoder; the decoder mirrors
	// them in reverse.
	DimH []int `yaml:"dim_h"`
	// BetaKLD scales the KL term of the lower bound. Nil means 1.
	BetaKLD *float64 `yaml:"beta_kld"`
	// OutputNonlinearity is the decoder output activation.
	OutputNonlinearity string `yaml:"output_nonlinearity"`
}

func (c *Config) applyDefaults() {
	if c.DimZ == 0 {
		c.DimZ = 64
	}
	if c.DimEncoderOut == 0 {
		c.DimEncoderOut = 1024
	}
	if c.BetaKLD == nil {
		one := 1.0
		c.BetaKLD = &one
	}
	if c.OutputNonlinearity == "" {
		c.OutputNonlinearity = "tanh"
	}
}

func (c *Config) validate() error {
	if c.DimInput <= 0 {
		return fmt.Errorf("%w: dim_input must be positive, got %d", plugin.ErrInvalidConfig, c.DimInput)
	}
	if c.DimZ <= 0 {
		return fmt.Errorf("%w: dim_z must be positive, got %d", plugin.ErrInvalidConfig, c.DimZ)
	}
	if c.DimEncoderOut <= 0 {
		return fmt.Errorf("%w: dim_encoder_out must be positive, got %d", plugin.ErrInvalidConfig, c.DimEncoderOut)
	}
	if *c.BetaKLD < 0 {
		return fmt.Errorf("%w: beta_kld must be non-negative, got %g", plugin.ErrInvalidConfig, *c.BetaKLD)
	}
	return nil
}

// VAE is the variational autoencoder model plugin. It composes an image
// encoder and decoder into a single trained network whose loss is the
// negative evidence lower bound: reconstruction error plus the
// beta-weighted KL divergence of the latent posterior from N(0, I).
type VAE[B tensor.Backend] struct {
	env plugin.Env[B]
	cfg Config

	encoder *ImageEncoder[B]
	decoder *ImageDecoder[B]
	network *Network[B]

	criterion *nn.MSELoss[B]

	nets    *plugin.Nets[B]
	losses  *plugin.Losses[B]
	results *plugin.Results
	visuals *plugin.Visuals
}

// New creates a VAE plugin from its environment. The model_args section is
// decoded strictly; unknown keys are an error.
func New[B tensor.Backend](env plugin.Env[B]) (*VAE[B], error) {
	var cfg Config
	if err := config.DecodeModelArgs(env.ModelArgs, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", plugin.ErrInvalidConfig, err)
	}
	cfg.applyDefaults()

	return &VAE[B]{
		env:       env,
		cfg:       cfg,
		criterion: nn.NewMSELoss[B](nn.ReductionSum),
		nets:      plugin.NewNets[B](),
		losses:    plugin.NewLosses[B](),
		results:   plugin.NewResults(),
		visuals:   plugin.NewVisuals(),
	}, nil
}

// Name returns the registry name.
func (v *VAE[B]) Name() string { return "vae" }

// Defaults returns the experiment defaults for VAE training.
func (v *VAE[B]) Defaults() plugin.Defaults {
	return plugin.Defaults{
		BatchSizeTrain: 64,
		BatchSizeTest:  640,
		Optimizer:      "adam",
		LearningRate:   1e-4,
		Epochs:         10,
		SaveOnLowest:   "vae",
	}
}

// Build validates the configuration and constructs the network.
func (v *VAE[B]) Build() error {
	if err := v.cfg.validate(); err != nil {
		return err
	}

	encoder, err := BuildImageEncoder(v.cfg.DimInput, v.cfg.DimH, v.cfg.DimEncoderOut, v.env.RNG, v.env.Backend)
	if err != nil {
		return fmt.Errorf("%w: %v", plugin.ErrInvalidConfig, err)
	}

	decoderHidden := reversed(v.cfg.DimH)
	decoder, err := BuildImageDecoder(v.cfg.DimZ, decoderHidden, v.cfg.DimInput, v.cfg.OutputNonlinearity, v.env.RNG, v.env.Backend)
	if err != nil {
		return fmt.Errorf("%w: %v", plugin.ErrInvalidConfig, err)
	}

	v.encoder = encoder
	v.decoder = decoder
	v.network = NewNetwork(encoder.Net(), decoder.Net(), v.cfg.DimEncoderOut, v.cfg.DimZ, v.env.RNG, v.env.Backend)
	v.nets.Set("vae", v.network)
	return nil
}

// Routine computes the lower-bound loss for one batch:
//
//	recon = sum((decoded - inputs)²) / batch_size
//	kl    = mean_batch(0.5 * sum_z(std² + mu² - 2·log(std) - 1))
//	vae   = recon + beta_kld * kl
//
// and records the KL_divergence and ms_ssim metrics.
func (v *VAE[B]) Routine(batch *plugin.Batch[B], mode plugin.Mode) error {
	network := v.net()

	outputs := network.ForwardMode(batch.Inputs, mode)
	recon := v.criterion.Forward(outputs, batch.Inputs)
	kl := klDivergence(network.Mu(), network.Std())

	loss := recon.Add(kl.MulScalar(float32(*v.cfg.BetaKLD)))
	v.losses.Set("vae", loss)
	v.results.Set("KL_divergence", float64(kl.Item()))

	msssim, err := metrics.MSSSIM(batch.Inputs.Raw(), outputs.Raw(), metrics.DefaultConfig())
	if err != nil {
		return fmt.Errorf("vae routine: %w", err)
	}
	v.results.Set("ms_ssim", msssim)
	return nil
}

// Visualize records the reconstruction and ground-truth image batches, the
// latent-mean scatter, and the decoder's generated batch.
func (v *VAE[B]) Visualize(batch *plugin.Batch[B]) error {
	network := v.net()

	outputs := network.ForwardMode(batch.Inputs, plugin.ModeEval)
	v.visuals.AddImage(outputs.Raw(), "reconstruction")
	v.visuals.AddImage(batch.Inputs.Raw(), "ground truth")

	var labels []int32
	if batch.Targets != nil {
		labels = batch.Targets.Data()
	}
	v.encoder.Visualize(v.visuals, network.Mu().Raw(), labels)
	v.decoder.Visualize(v.visuals, network.Mu())
	return nil
}

// Network returns the built VAE network.
func (v *VAE[B]) Network() *Network[B] { return v.network }

// Nets returns the named-network container.
func (v *VAE[B]) Nets() *plugin.Nets[B] { return v.nets }

// Losses returns the per-batch loss container.
func (v *VAE[B]) Losses() *plugin.Losses[B] { return v.losses }

// Results returns the per-batch metric container.
func (v *VAE[B]) Results() *plugin.Results { return v.results }

// Visuals returns the inspection-artifact container.
func (v *VAE[B]) Visuals() *plugin.Visuals { return v.visuals }

func (v *VAE[B]) net() *Network[B] {
	if v.network == nil {
		panic("vae: Routine called before Build")
	}
	return v.network
}

// klDivergence computes the batch-mean KL divergence of N(mu, std²) from
// N(0, I), built from recorded tensor operations so gradients flow back
// through both heads.
func klDivergence[B tensor.Backend](mu, std *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inner := std.Mul(std).
		Add(mu.Mul(mu)).
		Sub(std.Log().MulScalar(2)).
		SubScalar(1)
	return inner.SumDim(1, false).MeanDim(0, false).MulScalar(0.5)
}

func reversed(dims []int) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = d
	}
	return out
}

func init() {
	plugin.MustRegister("vae", func(env plugin.Env[plugin.TrainingBackend]) (plugin.ModelPlugin[plugin.TrainingBackend], error) {
		return New(env)
	})
}
