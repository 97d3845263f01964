package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/config"
	"github.com/lumen-ml/lumen/internal/plugin"
)

const sampleYAML = `
name: vae-mnist
model: vae
seed: 7
data:
  dataset: csv
  path: train.csv
  batch_size:
    train: 64
    test: 640
optimizer:
  optimizer: adam
  learning_rate: 1.0e-4
train:
  epochs: 50
  save_on_lowest: vae
model_args:
  dim_z: 16
  beta_kld: 0.5
`

func TestParse(t *testing.T) {
	exp, err := config.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "vae-mnist", exp.Name)
	assert.Equal(t, "vae", exp.Model)
	assert.Equal(t, int64(7), exp.Seed)
	assert.Equal(t, "csv", exp.Data.Dataset)
	assert.Equal(t, 64, exp.Data.BatchSize.Train)
	assert.Equal(t, 640, exp.Data.BatchSize.Test)
	assert.Equal(t, 1e-4, exp.Optimizer.LearningRate)
	assert.Equal(t, 50, exp.Train.Epochs)
	assert.Equal(t, "vae", exp.Train.SaveOnLowest)
	assert.Contains(t, exp.ModelArgs, "dim_z")
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := config.Parse([]byte("model: vae\nlerning_rate: 0.1\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	exp, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vae", exp.Model)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults_PluginThenFallback(t *testing.T) {
	exp, err := config.Parse([]byte("model: vae\n"))
	require.NoError(t, err)

	exp.ApplyDefaults(plugin.Defaults{
		BatchSizeTrain: 64,
		BatchSizeTest:  640,
		Optimizer:      "adam",
		LearningRate:   1e-4,
		SaveOnLowest:   "vae",
	})

	assert.Equal(t, 64, exp.Data.BatchSize.Train)
	assert.Equal(t, 640, exp.Data.BatchSize.Test)
	assert.Equal(t, "adam", exp.Optimizer.Optimizer)
	assert.Equal(t, 1e-4, exp.Optimizer.LearningRate)
	assert.Equal(t, "vae", exp.Train.SaveOnLowest)
	// Package fallbacks for what the plugin left open.
	assert.Equal(t, "blobs", exp.Data.Dataset)
	assert.Equal(t, 10, exp.Train.Epochs)
	assert.Equal(t, int64(42), exp.Seed)
	assert.Equal(t, "runs", exp.Train.CheckpointDir)
}

func TestApplyDefaults_ExplicitWins(t *testing.T) {
	exp, err := config.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	exp.ApplyDefaults(plugin.Defaults{BatchSizeTrain: 128, Epochs: 200})

	assert.Equal(t, 64, exp.Data.BatchSize.Train)
	assert.Equal(t, 50, exp.Train.Epochs)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Experiment {
		exp, err := config.Parse([]byte(sampleYAML))
		require.NoError(t, err)
		exp.ApplyDefaults(plugin.Defaults{})
		return exp
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Experiment)
	}{
		{"missing model", func(e *config.Experiment) { e.Model = "" }},
		{"unknown dataset", func(e *config.Experiment) { e.Data.Dataset = "imagenet" }},
		{"csv without path", func(e *config.Experiment) { e.Data.Path = "" }},
		{"zero batch", func(e *config.Experiment) { e.Data.BatchSize.Train = 0 }},
		{"negative batch", func(e *config.Experiment) { e.Data.BatchSize.Test = -1 }},
		{"unknown optimizer", func(e *config.Experiment) { e.Optimizer.Optimizer = "rmsprop" }},
		{"zero lr", func(e *config.Experiment) { e.Optimizer.LearningRate = 0 }},
		{"momentum out of range", func(e *config.Experiment) { e.Optimizer.Momentum = 1.0 }},
		{"zero epochs", func(e *config.Experiment) { e.Train.Epochs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := valid()
			tt.mutate(exp)
			assert.Error(t, exp.Validate())
		})
	}
}

func TestDecodeModelArgs(t *testing.T) {
	type vaeArgs struct {
		DimZ    int     `yaml:"dim_z"`
		BetaKLD float64 `yaml:"beta_kld"`
	}

	var args vaeArgs
	require.NoError(t, config.DecodeModelArgs(map[string]any{
		"dim_z":    16,
		"beta_kld": 0.5,
	}, &args))
	assert.Equal(t, 16, args.DimZ)
	assert.Equal(t, 0.5, args.BetaKLD)

	// Unknown keys are config typos.
	err := config.DecodeModelArgs(map[string]any{"dimz": 16}, &args)
	assert.Error(t, err)

	// Nil args leave defaults untouched.
	untouched := vaeArgs{DimZ: 64}
	require.NoError(t, config.DecodeModelArgs(nil, &untouched))
	assert.Equal(t, 64, untouched.DimZ)
}
