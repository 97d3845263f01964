package metrics

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// msssimWeights are the standard per-scale exponents from Wang et al.,
// "Multi-scale structural similarity for image quality assessment" (2003).
var msssimWeights = []float64{0.0448, 0.2856, 0.3001, 0.2363, 0.1333}

// MSSSIM computes multi-scale structural similarity between two image
// batches of identical shape [batch, dim]. Each scale halves the signal by
// 2:1 averaging; contrast-structure terms contribute at every scale and the
// luminance term only at the coarsest. The number of scales shrinks when
// the signal is too short for all five.
func MSSSIM(x, y *tensor.RawTensor, cfg Config) (float64, error) {
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

	dim := len(xRows[0])
	levels := len(msssimWeights)
	for levels > 1 && dim>>(levels-1) < cfg.WindowSize {
		levels--
	}

	window := gaussianWindow(cfg.WindowSize, cfg.Sigma)
	c1 := (0.01 * cfg.DynamicRange) * (0.01 * cfg.DynamicRange)
	c2 := (0.03 * cfg.DynamicRange) * (0.03 * cfg.DynamicRange)

	var total float64
	for b := range xRows {
		score, err := msssimSample(xRows[b], yRows[b], window, c1, c2, levels)
		if err != nil {
			return 0, err
		}
		total += score
	}
	return total / float64(len(xRows)), nil
}

func msssimSample(x, y []float64, window []float64, c1, c2 float64, levels int) (float64, error) {
	score := 1.0
	for level := 0; level < levels; level++ {
		stats := windowStats(x, y, window, c1, c2)

		cs := stats.contrast
		if level == levels-1 {
			cs *= stats.luminance
		}
		// Negative contrast terms would make the weighted geometric
		// mean undefined; they only occur for anti-correlated noise.
		if cs <= 0 {
			return 0, nil
		}
		score *= math.Pow(cs, msssimWeights[level])

		if level < levels-1 {
			x = downsample(x)
			y = downsample(y)
		}
	}
	return score, nil
}

// downsample halves a signal by averaging adjacent pairs.
func downsample(x []float64) []float64 {
	out := make([]float64, len(x)/2)
	for i := range out {
		out[i] = (x[2*i] + x[2*i+1]) / 2
	}
	return out
}
