package nn

import (
	"fmt"
	"math/rand"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// NewFullyConnected builds a multilayer perceptron from a list of layer
// widths. dims{784, 1024, 64} produces Linear(784, 1024) + hidden
// activation + Linear(1024, 64) + output activation.
//
// The hidden activation sits after every layer except the last; the output
// activation shapes the network's final range (e.g. "tanh" for images
// normalized to [-1, 1], "identity" for unbounded outputs).
func NewFullyConnected[B tensor.Backend](dims []int, hiddenActivation, outputActivation string, rng *rand.Rand, backend B) (*Sequential[B], error) {
	if len(dims) < 2 {
		return nil, fmt.Errorf("fully connected network needs at least 2 layer widths, got %d", len(dims))
	}
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("layer width %d at index %d must be positive", d, i)
		}
	}

	hidden := hiddenActivation
	if hidden == "" {
		hidden = "relu"
	}

	model := NewSequential[B]()
	for i := 0; i < len(dims)-1; i++ {
		model.Add(NewLinear(dims[i], dims[i+1], rng, backend))

		last := i == len(dims)-2
		name := hidden
		if last {
			name = outputActivation
		}
		act, err := NewActivation[B](name)
		if err != nil {
			return nil, err
		}
		if _, isIdentity := act.(*Identity[B]); isIdentity && last {
			// No trailing no-op module.
			continue
		}
		model.Add(act)
	}

	return model, nil
}
