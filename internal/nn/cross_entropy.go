package nn

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// CrossEntropyBackend is implemented by backends providing the fused
// cross-entropy kernel (softmax + negative log-likelihood in one pass).
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// LogSoftmaxBackend is implemented by backends providing a fused
// log-softmax kernel.
type LogSoftmaxBackend interface {
	LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor
}

// CrossEntropyLoss computes mean cross-entropy between raw logits and
// integer class targets.
//
// The fused backend kernel is numerically stable (log-sum-exp with max
// shift) and its backward pass is the cheap softmax(logits) - onehot.
type CrossEntropyLoss[B tensor.Backend] struct {
	stateless[B]
}

// NewCrossEntropyLoss creates a cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend]() *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{}
}

// Forward computes the mean cross-entropy loss.
//
//   - logits: [batch_size, num_classes] float32, unnormalized
//   - targets: [batch_size] int32 class indices
//
// Returns a one-element tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	logitsShape := logits.Shape()
	if len(logitsShape) != 2 {
		panic(fmt.Sprintf("CrossEntropyLoss: expected 2D logits [batch, classes], got shape %v", logitsShape))
	}
	targetsShape := targets.Shape()
	if len(targetsShape) != 1 || targetsShape[0] != logitsShape[0] {
		panic(fmt.Sprintf("CrossEntropyLoss: expected targets shape [%d], got %v", logitsShape[0], targetsShape))
	}

	backend := logits.Backend()
	ceb, ok := any(backend).(CrossEntropyBackend)
	if !ok {
		panic("CrossEntropyLoss: backend must implement the CrossEntropy operation (use autodiff.AutodiffBackend)")
	}
	return tensor.New[float32, B](ceb.CrossEntropy(logits.Raw(), targets.Raw()), backend)
}

// LogSoftmax applies log-softmax along the class dimension. Inference
// helper; no gradients are recorded.
func LogSoftmax[B tensor.Backend](logits *tensor.Tensor[float32, B], dim int) *tensor.Tensor[float32, B] {
	backend := logits.Backend()
	lsb, ok := any(backend).(LogSoftmaxBackend)
	if !ok {
		panic("LogSoftmax: backend must implement the LogSoftmax operation")
	}
	return tensor.New[float32, B](lsb.LogSoftmax(logits.Raw(), dim), backend)
}
