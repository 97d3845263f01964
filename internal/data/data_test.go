package data_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/data"
	"github.com/lumen-ml/lumen/internal/tensor"
)

func TestNewDataset(t *testing.T) {
	ds, err := data.NewDataset([][]float32{{1, 2}, {3, 4}, {5, 6}}, []int32{0, 1, 0})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 2, ds.Dim())
	assert.True(t, ds.Labeled())
	assert.Equal(t, 2, ds.NumClasses())
	assert.Equal(t, []float32{3, 4}, ds.Sample(1))
	assert.Equal(t, int32(1), ds.Label(1))
}

func TestNewDataset_Unlabeled(t *testing.T) {
	ds, err := data.NewDataset([][]float32{{1}, {2}}, nil)
	require.NoError(t, err)
	assert.False(t, ds.Labeled())
	assert.Equal(t, 0, ds.NumClasses())
}

func TestNewDataset_Errors(t *testing.T) {
	_, err := data.NewDataset(nil, nil)
	assert.Error(t, err)

	_, err = data.NewDataset([][]float32{{1, 2}, {3}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrDimension)

	_, err = data.NewDataset([][]float32{{1}, {2}}, []int32{0})
	assert.ErrorIs(t, err, data.ErrDimension)
}

func TestLoader_CoversAllSamplesOncePerEpoch(t *testing.T) {
	backend := cpu.New()
	inputs := make([][]float32, 10)
	for i := range inputs {
		inputs[i] = []float32{float32(i)}
	}
	ds, err := data.NewDataset(inputs, nil)
	require.NoError(t, err)

	loader := data.NewLoader(ds, 3, true, rand.New(rand.NewSource(1)), backend)
	assert.Equal(t, 4, loader.NumBatches())

	seen := make(map[float32]bool)
	batches := 0
	for {
		batch, labels, ok := loader.Next()
		if !ok {
			break
		}
		batches++
		assert.Nil(t, labels)
		for _, v := range batch.Data() {
			assert.False(t, seen[v], "sample %v emitted twice", v)
			seen[v] = true
		}
	}
	assert.Equal(t, 4, batches)
	assert.Len(t, seen, 10)
}

func TestLoader_PartialTrailingBatch(t *testing.T) {
	backend := cpu.New()
	ds, err := data.NewDataset([][]float32{{1}, {2}, {3}, {4}, {5}}, []int32{0, 1, 0, 1, 0})
	require.NoError(t, err)

	loader := data.NewLoader(ds, 2, false, rand.New(rand.NewSource(1)), backend)

	sizes := []int{}
	for {
		batch, labels, ok := loader.Next()
		if !ok {
			break
		}
		require.NotNil(t, labels)
		assert.Equal(t, batch.Shape()[0], labels.Shape()[0])
		sizes = append(sizes, batch.Shape()[0])
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLoader_ResetReshuffles(t *testing.T) {
	backend := cpu.New()
	inputs := make([][]float32, 32)
	for i := range inputs {
		inputs[i] = []float32{float32(i)}
	}
	ds, err := data.NewDataset(inputs, nil)
	require.NoError(t, err)

	loader := data.NewLoader(ds, 32, true, rand.New(rand.NewSource(5)), backend)

	first, _, ok := loader.Next()
	require.True(t, ok)
	firstOrder := append([]float32(nil), first.Data()...)

	loader.Reset()
	second, _, ok := loader.Next()
	require.True(t, ok)

	assert.NotEqual(t, firstOrder, second.Data())
}

func TestLoader_DeterministicWithoutShuffle(t *testing.T) {
	backend := cpu.New()
	ds, err := data.NewDataset([][]float32{{1}, {2}, {3}}, nil)
	require.NoError(t, err)

	loader := data.NewLoader(ds, 3, false, rand.New(rand.NewSource(1)), backend)
	batch, _, ok := loader.Next()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, batch.Data())
	assert.True(t, batch.Shape().Equal(tensor.Shape{3, 1}))
}

func TestGenerateBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ds := data.GenerateBlobs(100, 8, 4, rng)

	assert.Equal(t, 100, ds.Len())
	assert.Equal(t, 8, ds.Dim())
	assert.Equal(t, 4, ds.NumClasses())

	for i := 0; i < ds.Len(); i++ {
		for _, v := range ds.Sample(i) {
			assert.GreaterOrEqual(t, v, float32(-1))
			assert.LessOrEqual(t, v, float32(1))
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.csv")
	content := "label,p0,p1,p2\n" +
		"1,0,255,128\n" +
		"0,255,0,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := data.LoadCSV(path, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 3, ds.Dim())
	assert.Equal(t, int32(1), ds.Label(0))

	// 0 -> -1, 255 -> 1, 128 -> ~0
	sample := ds.Sample(0)
	assert.InDelta(t, -1.0, float64(sample[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(sample[1]), 1e-6)
	assert.InDelta(t, 0.0, float64(sample[2]), 0.01)
}

func TestLoadCSV_MaxSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.csv")
	content := "label,p0\n1,0\n2,10\n3,20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := data.LoadCSV(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoadCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := data.LoadCSV(filepath.Join(dir, "missing.csv"), 0)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("label,p0\n"), 0o644))
	_, err = data.LoadCSV(empty, 0)
	assert.Error(t, err)

	badLabel := filepath.Join(dir, "badlabel.csv")
	require.NoError(t, os.WriteFile(badLabel, []byte("label,p0\nx,0\n"), 0o644))
	_, err = data.LoadCSV(badLabel, 0)
	assert.Error(t, err)

	badPixel := filepath.Join(dir, "badpixel.csv")
	require.NoError(t, os.WriteFile(badPixel, []byte("label,p0\n1,zz\n"), 0o644))
	_, err = data.LoadCSV(badPixel, 0)
	assert.Error(t, err)
}
