package data

import (
	"math/rand"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Loader iterates a dataset in mini-batches, materializing each batch as
// backend tensors. A trailing batch smaller than the batch size is emitted
// rather than dropped.
type Loader[B tensor.Backend] struct {
	dataset   *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	backend   B
	order     []int
	pos       int
}

// NewLoader creates a loader. With shuffle enabled the sample order is
// re-drawn from rng on every Reset.
func NewLoader[B tensor.Backend](dataset *Dataset, batchSize int, shuffle bool, rng *rand.Rand, backend B) *Loader[B] {
	if batchSize <= 0 {
		panic("data: batch size must be positive")
	}

	order := make([]int, dataset.Len())
	for i := range order {
		order[i] = i
	}

	l := &Loader[B]{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		backend:   backend,
		order:     order,
	}
	l.Reset()
	return l
}

// Reset rewinds to the first batch, reshuffling when enabled.
func (l *Loader[B]) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// NumBatches returns the number of batches per epoch, counting a partial
// trailing batch.
func (l *Loader[B]) NumBatches() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Next returns the next batch of inputs and labels. The labels tensor is
// nil for unlabeled datasets. ok is false once the epoch is exhausted.
func (l *Loader[B]) Next() (inputs *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B], ok bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}

	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	indices := l.order[l.pos:end]
	l.pos = end

	batch := len(indices)
	dim := l.dataset.Dim()

	inputsRaw, err := tensor.NewRaw(tensor.Shape{batch, dim}, tensor.Float32, l.backend.Device())
	if err != nil {
		panic(err)
	}
	inputsData := inputsRaw.AsFloat32()
	for row, idx := range indices {
		copy(inputsData[row*dim:(row+1)*dim], l.dataset.Sample(idx))
	}
	inputs = tensor.New[float32, B](inputsRaw, l.backend)

	if l.dataset.Labeled() {
		labelsRaw, err := tensor.NewRaw(tensor.Shape{batch}, tensor.Int32, l.backend.Device())
		if err != nil {
			panic(err)
		}
		labelsData := labelsRaw.AsInt32()
		for row, idx := range indices {
			labelsData[row] = l.dataset.Label(idx)
		}
		labels = tensor.New[int32, B](labelsRaw, l.backend)
	}

	return inputs, labels, true
}
