package train

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/checkpoint"
	"github.com/lumen-ml/lumen/internal/metrics"
	"github.com/lumen-ml/lumen/internal/plugin"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// NonFiniteLossMetric is set to 1 for a batch whose loss was NaN or Inf.
// The batch is logged and skipped instead of poisoning the parameters.
const NonFiniteLossMetric = "non_finite_loss"

// Run executes the configured number of epochs: a gradient-updating pass
// over the training loader, then an evaluation pass over the test loader.
// The save_on_lowest loss is checkpointed whenever its evaluation mean
// reaches a new minimum.
func (t *Trainer) Run(ctx context.Context) error {
	t.logger.Info("training started",
		"epochs", t.cfg.Train.Epochs,
		"optimizer", t.cfg.Optimizer.Optimizer,
		"learning_rate", t.cfg.Optimizer.LearningRate,
		"train_batches", t.trainLoader.NumBatches(),
		"test_batches", t.testLoader.NumBatches())

	for epoch := 1; epoch <= t.cfg.Train.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("training interrupted: %w", err)
		}

		trainMeans, err := t.trainEpoch(ctx)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		t.logEpoch("train epoch done", epoch, trainMeans)

		evalMeans, err := t.evalEpoch(ctx)
		if err != nil {
			return fmt.Errorf("epoch %d eval: %w", epoch, err)
		}
		t.logEpoch("eval epoch done", epoch, evalMeans)

		if err := t.maybeCheckpoint(epoch, evalMeans); err != nil {
			return fmt.Errorf("epoch %d checkpoint: %w", epoch, err)
		}
	}

	t.logger.Info("training finished", "epochs", t.cfg.Train.Epochs)
	return nil
}

// trainEpoch runs one pass over the training loader with gradient updates.
func (t *Trainer) trainEpoch(ctx context.Context) (map[string]float64, error) {
	tape := t.backend.GetTape()
	stats := newEpochStats()
	t.trainLoader.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputs, labels, ok := t.trainLoader.Next()
		if !ok {
			break
		}

		t.model.Losses().Clear()
		t.model.Results().Clear()
		tape.Clear()
		tape.StartRecording()

		batch := &plugin.Batch[plugin.TrainingBackend]{Inputs: inputs, Targets: labels}
		err := t.model.Routine(batch, plugin.ModeTrain)
		if err != nil {
			tape.StopRecording()
			return nil, fmt.Errorf("routine: %w", err)
		}

		loss := t.objective()
		if loss == nil {
			tape.StopRecording()
			return nil, fmt.Errorf("routine produced no losses")
		}

		lossValue := float64(loss.Item())
		if !metrics.IsFinite(lossValue) {
			t.model.Results().Set(NonFiniteLossMetric, 1)
			t.logger.Warn("non-finite loss, skipping batch",
				"loss", lossValue, "losses", t.model.Losses().Names())
		} else {
			grads := autodiff.Backward(loss, t.backend)
			t.opt.Step(grads)
			t.opt.ZeroGrad()
		}

		tape.StopRecording()
		tape.Clear()

		stats.addLosses(t.model.Losses())
		stats.addResults(t.model.Results())
	}

	return stats.means(), nil
}

// evalEpoch runs one deterministic pass over the test loader, with
// Visualize on the first batch.
func (t *Trainer) evalEpoch(ctx context.Context) (map[string]float64, error) {
	tape := t.backend.GetTape()
	tape.StopRecording()
	tape.Clear()

	stats := newEpochStats()
	t.testLoader.Reset()
	first := true

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputs, labels, ok := t.testLoader.Next()
		if !ok {
			break
		}

		t.model.Losses().Clear()
		t.model.Results().Clear()

		batch := &plugin.Batch[plugin.TrainingBackend]{Inputs: inputs, Targets: labels}
		if err := t.model.Routine(batch, plugin.ModeEval); err != nil {
			return nil, fmt.Errorf("routine: %w", err)
		}

		if first {
			first = false
			t.model.Visuals().Clear()
			if err := t.model.Visualize(batch); err != nil {
				return nil, fmt.Errorf("visualize: %w", err)
			}
		}

		stats.addLosses(t.model.Losses())
		stats.addResults(t.model.Results())
	}

	return stats.means(), nil
}

// objective returns the loss tensor driving the backward pass: the
// save_on_lowest loss when the routine produced it, otherwise the sum of
// all losses in name order.
func (t *Trainer) objective() *tensor.Tensor[float32, plugin.TrainingBackend] {
	losses := t.model.Losses()
	if name := t.cfg.Train.SaveOnLowest; name != "" {
		if loss := losses.Get(name); loss != nil {
			return loss
		}
	}

	var total *tensor.Tensor[float32, plugin.TrainingBackend]
	for _, name := range losses.Names() {
		loss := losses.Get(name)
		if total == nil {
			total = loss
		} else {
			total = total.Add(loss)
		}
	}
	return total
}

// maybeCheckpoint saves the model state when the tracked loss mean reaches
// a new minimum.
func (t *Trainer) maybeCheckpoint(epoch int, evalMeans map[string]float64) error {
	name := t.cfg.Train.SaveOnLowest
	if name == "" {
		return nil
	}
	value, ok := evalMeans[name]
	if !ok || !metrics.IsFinite(value) {
		return nil
	}
	if t.hasBest && value >= t.bestLoss {
		return nil
	}
	t.bestLoss = value
	t.hasBest = true

	path := t.CheckpointPath()
	meta := checkpoint.Meta{Model: t.cfg.Model, Epoch: epoch, Loss: value}
	if err := checkpoint.Save(path, t.flattenState(), meta, t.cfg.Train.HalfPrecision); err != nil {
		return err
	}
	t.logger.Info("checkpoint saved", "path", path, "epoch", epoch, "loss", value)
	return nil
}

// CheckpointPath returns where this run stores its best checkpoint.
func (t *Trainer) CheckpointPath() string {
	return filepath.Join(t.cfg.Train.CheckpointDir, t.runID, "best.lmck")
}

// flattenState collects every network's state dict under "net.param" keys,
// plus the optimizer state under "optimizer." when available.
func (t *Trainer) flattenState() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	nets := t.model.Nets()
	for _, netName := range nets.Names() {
		for paramName, raw := range nets.Get(netName).StateDict() {
			state[netName+"."+paramName] = raw.Clone()
		}
	}

	if s, ok := t.opt.(interface{ StateDict() map[string]*tensor.RawTensor }); ok {
		for name, raw := range s.StateDict() {
			state["optimizer."+name] = raw.Clone()
		}
	}
	return state
}

// LoadCheckpoint restores network and optimizer state from a checkpoint
// written by a previous run of the same model.
func (t *Trainer) LoadCheckpoint(path string) error {
	state, header, err := checkpoint.Load(path)
	if err != nil {
		return err
	}
	if header.Model != t.cfg.Model {
		return fmt.Errorf("checkpoint is for model %q, experiment uses %q", header.Model, t.cfg.Model)
	}

	nets := t.model.Nets()
	perNet := make(map[string]map[string]*tensor.RawTensor)
	optState := make(map[string]*tensor.RawTensor)
	for key, raw := range state {
		netName, paramName, found := strings.Cut(key, ".")
		if !found {
			continue
		}
		if netName == "optimizer" {
			optState[paramName] = raw
			continue
		}
		if perNet[netName] == nil {
			perNet[netName] = make(map[string]*tensor.RawTensor)
		}
		perNet[netName][paramName] = raw
	}

	for netName, sd := range perNet {
		if !nets.Has(netName) {
			return fmt.Errorf("checkpoint names unknown network %q", netName)
		}
		if err := nets.Get(netName).LoadStateDict(sd); err != nil {
			return fmt.Errorf("loading network %q: %w", netName, err)
		}
	}

	if len(optState) > 0 {
		if l, ok := t.opt.(interface {
			LoadStateDict(map[string]*tensor.RawTensor) error
		}); ok {
			if err := l.LoadStateDict(optState); err != nil {
				return fmt.Errorf("loading optimizer state: %w", err)
			}
		}
	}

	t.bestLoss = header.Loss
	t.hasBest = true
	t.logger.Info("checkpoint loaded", "path", path, "epoch", header.Epoch, "loss", header.Loss)
	return nil
}

// logEpoch emits one structured log line with all metric means.
func (t *Trainer) logEpoch(msg string, epoch int, means map[string]float64) {
	args := []any{"epoch", epoch}
	names := make([]string, 0, len(means))
	for name := range means {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, name, means[name])
	}
	t.logger.Info(msg, args...)
}

// epochStats accumulates per-batch loss and metric values for epoch means.
type epochStats struct {
	values map[string][]float64
}

func newEpochStats() *epochStats {
	return &epochStats{values: make(map[string][]float64)}
}

func (s *epochStats) add(name string, value float64) {
	s.values[name] = append(s.values[name], value)
}

func (s *epochStats) addLosses(losses *plugin.Losses[plugin.TrainingBackend]) {
	for _, name := range losses.Names() {
		s.add(name, float64(losses.Get(name).Item()))
	}
}

func (s *epochStats) addResults(results *plugin.Results) {
	for _, name := range results.Names() {
		if v, ok := results.Get(name); ok {
			s.add(name, v)
		}
	}
}

// means returns the mean of every accumulated series. Non-finite batch
// values are kept; a NaN mean is a signal, not a bug.
func (s *epochStats) means() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for name, series := range s.values {
		if len(series) == 0 {
			out[name] = math.NaN()
			continue
		}
		out[name] = stat.Mean(series, nil)
	}
	return out
}
