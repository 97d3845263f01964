package data

import (
	"math/rand"
)

// GenerateBlobs builds a synthetic labeled dataset of Gaussian clusters,
// one cluster per class, with all values clamped to [-1, 1] to match the
// tanh output range of the image decoders. Useful for demos and tests that
// need learnable structure without external files.
func GenerateBlobs(numSamples, dim, numClasses int, rng *rand.Rand) *Dataset {
	if numSamples <= 0 || dim <= 0 || numClasses <= 0 {
		panic("data: blob parameters must be positive")
	}

	centers := make([][]float64, numClasses)
	for c := range centers {
		center := make([]float64, dim)
		for i := range center {
			center[i] = rng.Float64()*1.6 - 0.8
		}
		centers[c] = center
	}

	inputs := make([][]float32, numSamples)
	labels := make([]int32, numSamples)
	for s := range inputs {
		class := s % numClasses
		labels[s] = int32(class)

		sample := make([]float32, dim)
		for i := range sample {
			v := centers[class][i] + rng.NormFloat64()*0.15
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			sample[i] = float32(v)
		}
		inputs[s] = sample
	}

	ds, err := NewDataset(inputs, labels)
	if err != nil {
		panic(err)
	}
	return ds
}
