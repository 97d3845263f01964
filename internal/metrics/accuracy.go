package metrics

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Accuracy returns the percentage of rows whose argmax over logits matches
// the target class: 100 * mean(argmax(logits) == target). Ties resolve to
// the first maximum.
func Accuracy(logits, targets *tensor.RawTensor) (float64, error) {
	logitsShape := logits.Shape()
	if len(logitsShape) != 2 {
		return 0, fmt.Errorf("metrics: expected 2D logits [batch, classes], got shape %v", logitsShape)
	}
	if logits.DType() != tensor.Float32 {
		return 0, fmt.Errorf("metrics: expected float32 logits, got %v", logits.DType())
	}
	targetsShape := targets.Shape()
	if len(targetsShape) != 1 || targetsShape[0] != logitsShape[0] {
		return 0, fmt.Errorf("metrics: expected targets shape [%d], got %v", logitsShape[0], targetsShape)
	}
	if targets.DType() != tensor.Int32 {
		return 0, fmt.Errorf("metrics: expected int32 targets, got %v", targets.DType())
	}

	batch, classes := logitsShape[0], logitsShape[1]
	data := logits.AsFloat32()
	labels := targets.AsInt32()

	correct := 0
	for b := 0; b < batch; b++ {
		row := data[b*classes : (b+1)*classes]
		best := 0
		for i := 1; i < classes; i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		if int32(best) == labels[b] {
			correct++
		}
	}
	return 100 * float64(correct) / float64(batch), nil
}
