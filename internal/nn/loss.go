package nn

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Reduction selects how MSELoss aggregates per-element squared errors.
type Reduction int

const (
	// ReductionMean averages the squared error over all elements.
	ReductionMean Reduction = iota
	// ReductionSum sums the squared error over all elements and divides
	// by the batch dimension, yielding a per-sample total error. This is
	// the reconstruction-loss convention for autoencoders.
	ReductionSum
)

// String returns the configuration name of the reduction.
func (r Reduction) String() string {
	switch r {
	case ReductionMean:
		return "mean"
	case ReductionSum:
		return "sum"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// ParseReduction maps a configuration string to a Reduction.
func ParseReduction(name string) (Reduction, error) {
	switch name {
	case "mean", "":
		return ReductionMean, nil
	case "sum":
		return ReductionSum, nil
	default:
		return ReductionMean, fmt.Errorf("unknown reduction %q (supported: mean, sum)", name)
	}
}

// MSELoss computes squared-error loss between predictions and targets.
//
// The loss is built from backend tensor operations so gradients flow back
// to the predictions when computed under a recording tape.
type MSELoss[B tensor.Backend] struct {
	stateless[B]
	reduction Reduction
}

// NewMSELoss creates an MSE loss with the given reduction.
func NewMSELoss[B tensor.Backend](reduction Reduction) *MSELoss[B] {
	return &MSELoss[B]{reduction: reduction}
}

// Forward computes the loss as a one-element tensor.
//
// ReductionMean: mean((predictions - targets)²) over all elements.
// ReductionSum:  sum((predictions - targets)²) / batch_size.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions shape %v does not match targets shape %v",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	total := diff.Mul(diff).Sum()

	switch m.reduction {
	case ReductionSum:
		batch := predictions.Shape()[0]
		return total.DivScalar(float32(batch))
	default:
		return total.DivScalar(float32(predictions.NumElements()))
	}
}
