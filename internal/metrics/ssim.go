// Package metrics implements evaluation metrics for image models:
// structural similarity (SSIM), its multi-scale variant (MS-SSIM), and
// non-finite detection for numeric-instability reporting.
//
// Images arrive as float32 batches of flattened vectors [batch, dim]; the
// similarity statistics use a sliding Gaussian window over each vector.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Config holds SSIM parameters.
type Config struct {
	// WindowSize is the Gaussian window length (default 11).
	WindowSize int
	// Sigma is the Gaussian window standard deviation (default 1.5).
	Sigma float64
	// DynamicRange is the value range of the images (default 2, for
	// images normalized to [-1, 1]).
	DynamicRange float64
}

// DefaultConfig returns the standard SSIM parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:   11,
		Sigma:        1.5,
		DynamicRange: 2.0,
	}
}

func (c Config) withDefaults() Config {
	out := c
	if out.WindowSize <= 0 {
		out.WindowSize = 11
	}
	if out.Sigma <= 0 {
		out.Sigma = 1.5
	}
	if out.DynamicRange <= 0 {
		out.DynamicRange = 2.0
	}
	return out
}

// gaussianWindow returns a normalized Gaussian kernel of the given size.
func gaussianWindow(size int, sigma float64) []float64 {
	window := make([]float64, size)
	center := float64(size-1) / 2
	for i := range window {
		d := float64(i) - center
		window[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(window), window)
	return window
}

// ssimStats holds the Gaussian-weighted mean/variance/covariance statistics
// aggregated over all window positions of one sample pair.
type ssimStats struct {
	luminance float64
	contrast  float64
}

// windowStats computes the SSIM luminance and contrast-structure terms for
// one pair of vectors, averaged over sliding window positions.
func windowStats(x, y []float64, window []float64, c1, c2 float64) ssimStats {
	n := len(x)
	w := len(window)
	if n < w {
		// Degenerate input: single window over the whole signal.
		w = n
		window = gaussianWindow(w, float64(w)/7.0)
	}

	var lumSum, csSum float64
	positions := n - w + 1
	for start := 0; start < positions; start++ {
		var mx, my float64
		for i, wi := range window {
			mx += wi * x[start+i]
			my += wi * y[start+i]
		}
		var vx, vy, cov float64
		for i, wi := range window {
			dx := x[start+i] - mx
			dy := y[start+i] - my
			vx += wi * dx * dx
			vy += wi * dy * dy
			cov += wi * dx * dy
		}

		lumSum += (2*mx*my + c1) / (mx*mx + my*my + c1)
		csSum += (2*cov + c2) / (vx + vy + c2)
	}

	return ssimStats{
		luminance: lumSum / float64(positions),
		contrast:  csSum / float64(positions),
	}
}

// asFloat64Rows converts a [batch, dim] float32 tensor into per-sample
// float64 slices.
func asFloat64Rows(t *tensor.RawTensor) ([][]float64, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("metrics: expected 2D batch [batch, dim], got shape %v", shape)
	}
	if t.DType() != tensor.Float32 {
		return nil, fmt.Errorf("metrics: expected float32 images, got %v", t.DType())
	}

	batch, dim := shape[0], shape[1]
	data := t.AsFloat32()
	rows := make([][]float64, batch)
	for b := 0; b < batch; b++ {
		row := make([]float64, dim)
		for i := 0; i < dim; i++ {
			row[i] = float64(data[b*dim+i])
		}
		rows[b] = row
	}
	return rows, nil
}

// SSIM computes the mean structural similarity between two image batches of
// identical shape [batch, dim]. Returns a value in (-1, 1], where 1 means
// identical images.
func SSIM(x, y *tensor.RawTensor, cfg Config) (float64, error) {
	cfg = cfg.withDefaults()

	if !x.Shape().Equal(y.Shape()) {
		return 0, fmt.Errorf("metrics: image batch shapes %v and %v do not match", x.Shape(), y.Shape())
	}

	xRows, err := asFloat64Rows(x)
	if err != nil {
		return 0, err
	}
	yRows, err := asFloat64Rows(y)
	if err != nil {
		return 0, err
	}

	window := gaussianWindow(cfg.WindowSize, cfg.Sigma)
	c1 := (0.01 * cfg.DynamicRange) * (0.01 * cfg.DynamicRange)
	c2 := (0.03 * cfg.DynamicRange) * (0.03 * cfg.DynamicRange)

	var total float64
	for b := range xRows {
		stats := windowStats(xRows[b], yRows[b], window, c1, c2)
		total += stats.luminance * stats.contrast
	}
	return total / float64(len(xRows)), nil
}
