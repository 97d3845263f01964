// Package data provides in-memory datasets and mini-batch loading for
// training.
package data

import (
	"errors"
	"fmt"
)

// ErrDimension reports inconsistent sample dimensions in a dataset source.
var ErrDimension = errors.New("inconsistent sample dimensions")

// Dataset is an in-memory labeled dataset of flattened float32 feature
// vectors. Labels may be absent for unlabeled data.
type Dataset struct {
	inputs [][]float32
	labels []int32
	dim    int
}

// NewDataset builds a dataset from samples and optional labels. All samples
// must share one dimension; labels, when present, must pair one-to-one with
// samples.
func NewDataset(inputs [][]float32, labels []int32) (*Dataset, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("dataset must contain at least one sample")
	}
	dim := len(inputs[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: samples must be non-empty", ErrDimension)
	}
	for i, sample := range inputs {
		if len(sample) != dim {
			return nil, fmt.Errorf("%w: sample %d has dimension %d, want %d",
				ErrDimension, i, len(sample), dim)
		}
	}
	if labels != nil && len(labels) != len(inputs) {
		return nil, fmt.Errorf("%w: %d labels for %d samples",
			ErrDimension, len(labels), len(inputs))
	}

	return &Dataset{inputs: inputs, labels: labels, dim: dim}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.inputs)
}

// Dim returns the per-sample feature dimension.
func (d *Dataset) Dim() int {
	return d.dim
}

// Labeled reports whether the dataset carries labels.
func (d *Dataset) Labeled() bool {
	return d.labels != nil
}

// NumClasses returns one past the highest label, or 0 for unlabeled data.
func (d *Dataset) NumClasses() int {
	if d.labels == nil {
		return 0
	}
	max := int32(-1)
	for _, l := range d.labels {
		if l > max {
			max = l
		}
	}
	return int(max) + 1
}

// Sample returns the feature vector at index i.
func (d *Dataset) Sample(i int) []float32 {
	return d.inputs[i]
}

// Label returns the label at index i. Panics on unlabeled datasets.
func (d *Dataset) Label(i int) int32 {
	return d.labels[i]
}
