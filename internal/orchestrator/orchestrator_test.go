package orchestrator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

// #region helpers

func loopGenobuilder() genob.Genobuilder {
	return genob.Genobuilder{
		NumSamples: 4,
		FixedDim:   8,
		Params: []genob.ParamDef{
			{Name: "recombination_rate", Lower: 0, Upper: 1, InitialGuess: 0.5, Inferable: true, Truth: 0.6},
			{Name: "mutation_rate", Lower: 0, Upper: 1, InitialGuess: 0.5, Inferable: true, Truth: 0.4},
			{Name: "population_size", Lower: 100, Upper: 100000, InitialGuess: 10000},
		},
	}
}

func loopConfig() Config {
	cfg := DefaultConfig()
	cfg.Kernel = mcmc.KernelRandomWalk
	cfg.MaxIterations = 3
	cfg.Epochs = 1
	cfg.NumResults = 4
	cfg.BurnIn = 4
	cfg.NumRepsDx = 2
	cfg.NumRepsTraining = 10
	cfg.Seed = 21
	return cfg
}

// loopTrainer reports scripted accuracies per Fit call and scores
// matrices by their mean entry.
type loopTrainer struct {
	accuracies []float64
	fits       int
}

func (t *loopTrainer) Fit(_ genob.Dataset, _ int, _ float64, _ uint64) (float64, error) {
	i := t.fits
	if i >= len(t.accuracies) {
		i = len(t.accuracies) - 1
	}
	t.fits++
	return t.accuracies[i], nil
}

func (t *loopTrainer) Score(mats []genob.Matrix) ([]float64, error) {
	out := make([]float64, len(mats))
	for i, m := range mats {
		var sum float64
		for _, v := range m.Data {
			sum += float64(v)
		}
		out[i] = 2*sum/float64(len(m.Data)) - 1
	}
	return out, nil
}

// dyingBridge lets the first ok Simulate calls through, then fails all
// of them. Training-data generation keeps working.
type dyingBridge struct {
	genob.Local
	ok    int
	calls int
}

func (b *dyingBridge) Simulate(point []float64, numReps int, seed uint64) ([]genob.Matrix, error) {
	b.calls++
	if b.calls > b.ok {
		return nil, &genob.SimulationError{Point: point, Reason: "bridge down"}
	}
	return b.Local.Simulate(point, numReps, seed)
}

func newLoop(t *testing.T, cfg Config, accuracies []float64) (*Orchestrator, *loopTrainer, *param.Snapshot) {
	t.Helper()
	g := loopGenobuilder()
	snap, err := param.FromGenobuilder(&g)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	trainer := &loopTrainer{accuracies: accuracies}
	orch, err := New(cfg, genob.Local{G: &g, Parallelism: 1}, trainer, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch, trainer, snap
}

// #endregion helpers

// #region scenario-tests

func TestRunExhaustsIterationBudget(t *testing.T) {
	orch, trainer, snap := newLoop(t, loopConfig(), []float64{0.9, 0.8, 0.7})

	res, err := orch.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusMaxIters {
		t.Fatalf("status %s, want %s", res.Status, StatusMaxIters)
	}
	if trainer.fits != 3 {
		t.Fatalf("got %d training phases, want 3", trainer.fits)
	}
	if len(res.Iterations) != 3 {
		t.Fatalf("got %d iteration records, want 3", len(res.Iterations))
	}
	for i, it := range res.Iterations {
		if !it.Sampled {
			t.Fatalf("iteration %d skipped sampling", i+1)
		}
		if len(it.Summaries) != 2 {
			t.Fatalf("iteration %d has %d summaries", i+1, len(it.Summaries))
		}
		if it.Duration <= 0 {
			t.Fatalf("iteration %d has no duration", i+1)
		}
	}
	if got := res.AccuracyHistory; len(got) != 3 || got[0] != 0.9 || got[2] != 0.7 {
		t.Fatalf("accuracy history %v", got)
	}
	if res.Final == snap {
		t.Fatal("final snapshot must be a new state, not the initial one")
	}
	if len(res.LastSummaries()) != 2 {
		t.Fatal("missing final summaries")
	}
}

func TestRunConvergesBeforeSampling(t *testing.T) {
	orch, trainer, snap := newLoop(t, loopConfig(), []float64{0.9, 0.4})

	res, err := orch.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusConverged {
		t.Fatalf("status %s, want %s", res.Status, StatusConverged)
	}
	// Iteration 2 converges at the check, before its sampling phase.
	if trainer.fits != 2 {
		t.Fatalf("got %d training phases, want 2", trainer.fits)
	}
	if len(res.Iterations) != 2 {
		t.Fatalf("got %d iteration records, want 2", len(res.Iterations))
	}
	if !res.Iterations[0].Sampled || res.Iterations[1].Sampled {
		t.Fatalf("sampling flags wrong: %v %v", res.Iterations[0].Sampled, res.Iterations[1].Sampled)
	}
	// Estimates come from the last completed sampling phase.
	if len(res.LastSummaries()) != 2 {
		t.Fatal("missing summaries from iteration 1")
	}
}

func TestRunZeroIterationsIsNoOp(t *testing.T) {
	cfg := loopConfig()
	cfg.MaxIterations = 0
	orch, trainer, snap := newLoop(t, cfg, []float64{0.9})

	res, err := orch.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusNoOp {
		t.Fatalf("status %s, want %s", res.Status, StatusNoOp)
	}
	if trainer.fits != 0 || len(res.Iterations) != 0 {
		t.Fatal("no-op run must not train or sample")
	}
	// initial guesses pass through untouched
	if pos := res.Final.Position(); pos[0] != 0.5 || pos[1] != 0.5 {
		t.Fatalf("final position %v, want initial guesses", pos)
	}
}

func TestRunBurnInExhaustionIsFatalConfig(t *testing.T) {
	g := loopGenobuilder()
	snap, err := param.FromGenobuilder(&g)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// The first density evaluation succeeds, then the simulator rejects
	// every proposal for the whole burn-in window.
	bridge := &dyingBridge{Local: genob.Local{G: &g, Parallelism: 1}, ok: 1}
	orch, err := New(loopConfig(), bridge, &loopTrainer{accuracies: []float64{0.9}}, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	_, err = orch.Run(context.Background(), snap, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want *ConfigError", err)
	}
	if !errors.Is(err, mcmc.ErrBurnInExhausted) {
		t.Fatalf("cause %v, want ErrBurnInExhausted", err)
	}
}

func TestRunInitialSimulationFailureIsFatal(t *testing.T) {
	g := loopGenobuilder()
	snap, err := param.FromGenobuilder(&g)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	bridge := failingGenBridge{}
	orch, err := New(loopConfig(), bridge, &loopTrainer{accuracies: []float64{0.9}}, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	_, err = orch.Run(context.Background(), snap, nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if stageErr.Stage != StageDataGeneration || stageErr.Iteration != 0 {
		t.Fatalf("stage %s iteration %d, want initial data generation", stageErr.Stage, stageErr.Iteration)
	}
}

// failingGenBridge fails training-data generation outright.
type failingGenBridge struct{}

func (failingGenBridge) GenerateTraining(_ int, point []float64, _ *genob.PosteriorDist, _ uint64) (genob.Dataset, error) {
	return genob.Dataset{}, &genob.SimulationError{Point: point, Reason: "no data"}
}

func (failingGenBridge) Simulate(point []float64, _ int, _ uint64) ([]genob.Matrix, error) {
	return nil, &genob.SimulationError{Point: point, Reason: "no data"}
}

func TestRunTrainingDivergenceIsFatal(t *testing.T) {
	g := loopGenobuilder()
	snap, err := param.FromGenobuilder(&g)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	orch, err := New(loopConfig(), genob.Local{G: &g, Parallelism: 1},
		&loopTrainer{accuracies: []float64{math.NaN()}}, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	_, err = orch.Run(context.Background(), snap, nil)
	var divErr *TrainingDivergenceError
	if !errors.As(err, &divErr) {
		t.Fatalf("got %v, want *TrainingDivergenceError", err)
	}
	if divErr.Iteration != 1 {
		t.Fatalf("iteration %d, want 1", divErr.Iteration)
	}
}

func TestRunRejectsMissingInferableState(t *testing.T) {
	orch, _, _ := newLoop(t, loopConfig(), []float64{0.9})
	_, err := orch.Run(context.Background(), nil, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want *ConfigError", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	orch, _, snap := newLoop(t, loopConfig(), []float64{0.9, 0.8, 0.7})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.Run(ctx, snap, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() RunResult {
		orch, _, snap := newLoop(t, loopConfig(), []float64{0.9, 0.8, 0.7})
		res, err := orch.Run(context.Background(), snap, nil)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if len(a.Iterations) != len(b.Iterations) {
		t.Fatalf("iteration counts differ: %d vs %d", len(a.Iterations), len(b.Iterations))
	}
	for i := range a.Iterations {
		sa, sb := a.Iterations[i].Summaries, b.Iterations[i].Summaries
		for j := range sa {
			if sa[j] != sb[j] {
				t.Fatalf("iteration %d summary %d differs: %+v vs %+v", i+1, j, sa[j], sb[j])
			}
		}
	}
}

func TestRunUsesPreGeneratedData(t *testing.T) {
	g := loopGenobuilder()
	snap, err := param.FromGenobuilder(&g)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// The bridge's GenerateTraining always fails, so the run only
	// survives if the pre-generated dataset replaces the initial call.
	cfg := loopConfig()
	cfg.MaxIterations = 1
	cfg.Monitor.Threshold = 0.95 // converge at once, before data regeneration
	pre, err := g.GenerateData(10, snap.Position(), nil, 3, 1)
	if err != nil {
		t.Fatalf("pre-generate: %v", err)
	}

	orch, err := New(cfg, onlySimBridge{g: &g}, &loopTrainer{accuracies: []float64{0.5}}, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	res, err := orch.Run(context.Background(), snap, &pre)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusConverged {
		t.Fatalf("status %s, want %s", res.Status, StatusConverged)
	}
}

// onlySimBridge simulates but refuses to generate training data.
type onlySimBridge struct{ g *genob.Genobuilder }

func (b onlySimBridge) GenerateTraining(int, []float64, *genob.PosteriorDist, uint64) (genob.Dataset, error) {
	return genob.Dataset{}, &genob.SimulationError{Reason: "generation disabled"}
}

func (b onlySimBridge) Simulate(point []float64, numReps int, seed uint64) ([]genob.Matrix, error) {
	return b.g.Simulate(point, numReps, seed, 1)
}

// #endregion scenario-tests

// #region config-tests

func TestNewValidatesConfig(t *testing.T) {
	g := loopGenobuilder()
	bridge := genob.Local{G: &g, Parallelism: 1}
	trainer := &loopTrainer{accuracies: []float64{0.9}}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }},
		{"zero samples", func(c *Config) { c.NumResults = 0 }},
		{"zero reps", func(c *Config) { c.NumRepsDx = 0 }},
		{"zero training reps", func(c *Config) { c.NumRepsTraining = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"bad kernel", func(c *Config) { c.Kernel = "gibbs" }},
		{"bad policy", func(c *Config) { c.Monitor.Policy = "entropy" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loopConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, bridge, trainer, nil)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("got %v, want *ConfigError", err)
			}
		})
	}

	if _, err := New(loopConfig(), nil, trainer, nil); err == nil {
		t.Fatal("expected error for nil bridge")
	}
	if _, err := New(loopConfig(), bridge, nil, nil); err == nil {
		t.Fatal("expected error for nil trainer")
	}
}

// #endregion config-tests
