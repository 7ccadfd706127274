package replay

// #region imports
import (
	"context"
	"errors"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/monitor"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

// #endregion

// #region outcome

// Outcome is what actually happened when a fixture ran.
type Outcome struct {
	Status         string
	TrainingPhases int
	SamplingPhases int
	FatalError     bool
	ErrMessage     string
}

// Matches compares the outcome against a fixture's expectation.
func (o Outcome) Matches(want FixtureExpected) bool {
	return o.Status == want.Status &&
		o.TrainingPhases == want.TrainingPhases &&
		o.SamplingPhases == want.SamplingPhases &&
		o.FatalError == want.FatalError
}

// #endregion outcome

// #region scripted-collaborators

// scriptedTrainer reports the fixture's scripted accuracy per Fit call
// and scores matrices by their mean entry, so the surrogate density has
// a deterministic, position-dependent shape.
type scriptedTrainer struct {
	accuracies []float64
	fits       int
}

func (t *scriptedTrainer) Fit(_ genob.Dataset, _ int, _ float64, _ uint64) (float64, error) {
	i := t.fits
	if i >= len(t.accuracies) {
		i = len(t.accuracies) - 1
	}
	t.fits++
	return t.accuracies[i], nil
}

func (t *scriptedTrainer) Score(mats []genob.Matrix) ([]float64, error) {
	out := make([]float64, len(mats))
	for i, m := range mats {
		var sum float64
		for _, v := range m.Data {
			sum += float64(v)
		}
		mean := sum / float64(len(m.Data))
		out[i] = 2*mean - 1
	}
	return out, nil
}

// failingBridge fails every density-evaluation Simulate call while
// still producing training data, reproducing a simulator that rejects
// all proposal points.
type failingBridge struct {
	genob.Local
}

func (b failingBridge) Simulate(point []float64, _ int, _ uint64) ([]genob.Matrix, error) {
	return nil, &genob.SimulationError{Point: point, Reason: "scripted failure"}
}

// #endregion scripted-collaborators

// #region run

// Run executes the full loop against a fixture's scripted
// collaborators, entirely in-memory.
func Run(f Fixture) (Outcome, error) {
	cfg := loopConfig(f.Config)

	snap, err := param.FromGenobuilder(&f.Genobuilder)
	if err != nil {
		return Outcome{}, err
	}

	trainer := &scriptedTrainer{accuracies: f.Accuracies}

	var bridge orchestrator.Bridge = genob.Local{G: &f.Genobuilder, Parallelism: 1}
	if f.FailSimulation {
		bridge = failingBridge{genob.Local{G: &f.Genobuilder, Parallelism: 1}}
	}

	orch, err := orchestrator.New(cfg, bridge, trainer, nil)
	if err != nil {
		return Outcome{}, err
	}

	res, err := orch.Run(context.Background(), snap, nil)

	out := Outcome{
		Status:         string(res.Status),
		TrainingPhases: trainer.fits,
	}
	for _, it := range res.Iterations {
		if it.Sampled {
			out.SamplingPhases++
		}
	}
	if err != nil {
		out.FatalError = true
		out.ErrMessage = err.Error()
		var cfgErr *orchestrator.ConfigError
		if !errors.As(err, &cfgErr) {
			var stageErr *orchestrator.StageError
			if !errors.As(err, &stageErr) {
				// unexpected error class, surface it to the caller
				return out, err
			}
		}
	}
	return out, nil
}

// loopConfig fills controller defaults into a fixture config.
func loopConfig(fc FixtureConfig) orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if fc.Kernel != "" {
		cfg.Kernel = mcmc.KernelName(fc.Kernel)
	}
	if fc.MaxIterations != 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	if fc.Epochs != 0 {
		cfg.Epochs = fc.Epochs
	}
	if fc.NumResults != 0 {
		cfg.NumResults = fc.NumResults
	}
	if fc.BurnIn != 0 {
		cfg.BurnIn = fc.BurnIn
	}
	if fc.Thinning != 0 {
		cfg.Thinning = fc.Thinning
	}
	if fc.NumRepsDx != 0 {
		cfg.NumRepsDx = fc.NumRepsDx
	}
	if fc.NumRepsTraining != 0 {
		cfg.NumRepsTraining = fc.NumRepsTraining
	}
	if fc.TargetAccept != 0 {
		cfg.TargetAccept = fc.TargetAccept
	}
	if fc.Policy != "" {
		cfg.Monitor.Policy = monitor.Policy(fc.Policy)
	}
	if fc.Threshold != 0 {
		cfg.Monitor.Threshold = fc.Threshold
	}
	cfg.Seed = fc.Seed
	return cfg
}

// #endregion run
