package ops

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// CrossEntropyOp: output = mean over the batch of -log_softmax(logits)[target].
//
// The fused op exists because the combined gradient is the numerically
// benign (softmax(logits) - onehot(target)) / batch_size, avoiding the
// separate log and softmax backward passes.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor // [batch, classes] float32
	targets *tensor.RawTensor // [batch] int32, not differentiated
	output  *tensor.RawTensor // [1]
}

// NewCrossEntropyOp creates a CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// CrossEntropyForward computes the scalar loss. Logits must be
// [batch, classes] float32, targets [batch] int32 class indices.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	if logits.DType() != tensor.Float32 {
		panic(fmt.Sprintf("cross entropy: logits must be float32, got %s", logits.DType()))
	}
	batch, classes := shape[0], shape[1]
	if !targets.Shape().Equal(tensor.Shape{batch}) {
		panic(fmt.Sprintf("cross entropy: targets must be [%d], got %v", batch, targets.Shape()))
	}

	data := logits.AsFloat32()
	idx := targets.AsInt32()

	var total float64
	for b := 0; b < batch; b++ {
		row := data[b*classes : (b+1)*classes]
		target := int(idx[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, classes))
		}

		// log-sum-exp with max shift
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSumExp := float64(maxVal) + math.Log(sumExp)
		total += logSumExp - float64(row[target])
	}

	result, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, device)
	if err != nil {
		panic(err)
	}
	result.AsFloat32()[0] = float32(total / float64(batch))
	return result
}

// Backward computes d(loss)/d(logits) = (softmax - onehot) / batch,
// scaled by the incoming gradient. No gradient flows to targets.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	batch, classes := shape[0], shape[1]

	soft := backend.Softmax(op.logits, 1)
	grad := soft.Clone()
	data := grad.AsFloat32()
	idx := op.targets.AsInt32()
	scale := outputGrad.AsFloat32()[0] / float32(batch)

	for b := 0; b < batch; b++ {
		data[b*classes+int(idx[b])] -= 1
		for c := 0; c < classes; c++ {
			data[b*classes+c] *= scale
		}
	}

	return []*tensor.RawTensor{grad, nil}
}

// Inputs returns [logits, targets].
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits, op.targets}
}

// Output returns the one-element loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }
