package classifier

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/data"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

type testBackend = plugin.TrainingBackend

func newTestClassifier(t *testing.T, seed int64, args map[string]any) *Classifier[testBackend] {
	t.Helper()
	merged := map[string]any{
		"dim_input":   8,
		"num_classes": 3,
		"dim_h":       []int{16},
	}
	for k, v := range args {
		merged[k] = v
	}
	c, err := New(plugin.Env[testBackend]{
		Backend:   autodiff.New(cpu.New()),
		RNG:       rand.New(rand.NewSource(seed)),
		ModelArgs: merged,
	})
	require.NoError(t, err)
	require.NoError(t, c.Build())
	return c
}

func labeledBatch(t *testing.T, c *Classifier[testBackend], batchSize int) *plugin.Batch[testBackend] {
	t.Helper()
	rng := rand.New(rand.NewSource(77))
	inputs := tensor.Randn[float32](tensor.Shape{batchSize, c.cfg.DimInput}, rng, c.env.Backend)

	labels := make([]int32, batchSize)
	for i := range labels {
		labels[i] = int32(i % c.cfg.NumClasses)
	}
	targets, err := tensor.FromSlice(labels, tensor.Shape{batchSize}, c.env.Backend)
	require.NoError(t, err)
	return &plugin.Batch[testBackend]{Inputs: inputs, Targets: targets}
}

func TestClassifier_Registered(t *testing.T) {
	_, err := plugin.Lookup("classifier")
	assert.NoError(t, err)
}

func TestClassifier_Defaults(t *testing.T) {
	c := newTestClassifier(t, 1, nil)
	d := c.Defaults()
	assert.Equal(t, 128, d.BatchSizeTrain)
	assert.Equal(t, "adam", d.Optimizer)
	assert.InDelta(t, 1e-4, d.LearningRate, 1e-12)
	assert.Equal(t, 200, d.Epochs)
	assert.Equal(t, "classifier", d.SaveOnLowest)
}

func TestClassifier_Build_InvalidConfig(t *testing.T) {
	cases := map[string]map[string]any{
		"missing dim_input": {"num_classes": 3},
		"one class":         {"dim_input": 8, "num_classes": 1},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := New(plugin.Env[testBackend]{
				Backend:   autodiff.New(cpu.New()),
				RNG:       rand.New(rand.NewSource(1)),
				ModelArgs: args,
			})
			require.NoError(t, err)
			assert.ErrorIs(t, c.Build(), plugin.ErrInvalidConfig)
		})
	}
}

func TestClassifier_Routine_RequiresTargets(t *testing.T) {
	c := newTestClassifier(t, 2, nil)
	batch := labeledBatch(t, c, 4)
	batch.Targets = nil
	assert.Error(t, c.Routine(batch, plugin.ModeTrain))
}

func TestClassifier_Routine_SetsLossAndAccuracy(t *testing.T) {
	c := newTestClassifier(t, 3, nil)
	batch := labeledBatch(t, c, 9)

	require.NoError(t, c.Routine(batch, plugin.ModeEval))

	loss := c.Losses().Get("classifier")
	require.NotNil(t, loss)
	assert.Greater(t, float64(loss.Item()), 0.0)

	accuracy, ok := c.Results().Get("accuracy")
	require.True(t, ok)
	assert.GreaterOrEqual(t, accuracy, 0.0)
	assert.LessOrEqual(t, accuracy, 100.0)
}

func TestClassifier_Predict_ReturnsLogProbabilities(t *testing.T) {
	c := newTestClassifier(t, 4, nil)
	batch := labeledBatch(t, c, 5)

	logProbs := c.Predict(batch.Inputs)
	require.Equal(t, tensor.Shape{5, 3}, logProbs.Shape())

	// Each row exponentiates to a probability distribution.
	values := logProbs.Data()
	for row := 0; row < 5; row++ {
		var sum float64
		for class := 0; class < 3; class++ {
			sum += math.Exp(float64(values[row*3+class]))
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestClassifier_Visualize(t *testing.T) {
	c := newTestClassifier(t, 5, nil)
	batch := labeledBatch(t, c, 6)

	require.NoError(t, c.Visualize(batch))

	visuals := c.Visuals()
	require.Len(t, visuals.Images, 1)
	assert.Equal(t, "ground truth", visuals.Images[0].Name)
	require.Len(t, visuals.Scatters, 1)
	assert.Equal(t, "logits", visuals.Scatters[0].Name)
	assert.Len(t, visuals.Scatters[0].Labels, 6)
}

func TestClassifier_TrainingImprovesAccuracy(t *testing.T) {
	c := newTestClassifier(t, 6, map[string]any{"num_classes": 2})
	backend := c.env.Backend
	tape := backend.GetTape()

	rng := rand.New(rand.NewSource(31))
	ds := data.GenerateBlobs(64, 8, 2, rng)
	loader := data.NewLoader(ds, 64, false, rng, backend)
	inputs, targets, ok := loader.Next()
	require.True(t, ok)
	batch := &plugin.Batch[testBackend]{Inputs: inputs, Targets: targets}

	require.NoError(t, c.Routine(batch, plugin.ModeEval))
	initialLoss := float64(c.Losses().Get("classifier").Item())

	params := c.Nets().Parameters()
	for step := 0; step < 120; step++ {
		c.Losses().Clear()
		c.Results().Clear()
		tape.Clear()
		tape.StartRecording()
		require.NoError(t, c.Routine(batch, plugin.ModeTrain))
		grads := autodiff.Backward(c.Losses().Get("classifier"), backend)
		tape.StopRecording()

		for _, p := range params {
			grad, ok := grads[p.Tensor().Raw()]
			if !ok {
				continue
			}
			values := p.Tensor().Data()
			for i, g := range grad.AsFloat32() {
				values[i] -= 0.05 * g
			}
		}
		tape.Clear()
	}

	c.Losses().Clear()
	c.Results().Clear()
	require.NoError(t, c.Routine(batch, plugin.ModeEval))
	finalLoss := float64(c.Losses().Get("classifier").Item())
	accuracy, _ := c.Results().Get("accuracy")

	assert.Less(t, finalLoss, initialLoss)
	assert.Greater(t, accuracy, 70.0)
}
