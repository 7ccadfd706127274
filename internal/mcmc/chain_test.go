package mcmc

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// flakyTarget succeeds for the first ok evaluations, then fails every
// one after that.
type flakyTarget struct {
	ok    int
	calls int
}

func (f *flakyTarget) LogProb(pos []float64) (float64, error) {
	f.calls++
	if f.calls > f.ok {
		return 0, &genob.SimulationError{Point: pos, Reason: "bridge down"}
	}
	return 0, nil
}

func chainConfig(kernel KernelName) Config {
	return Config{
		Kernel:       kernel,
		NumResults:   10,
		BurnIn:       10,
		Thinning:     1,
		TargetAccept: 0.65,
		Seed:         17,
	}
}

func TestRunProducesRequestedSamples(t *testing.T) {
	for _, name := range []KernelName{KernelRandomWalk, KernelHMC, KernelNUTS} {
		t.Run(string(name), func(t *testing.T) {
			res, err := Run(chainConfig(name), []float64{0.1}, []float64{0.3}, wideBounds(1), gaussianTarget{})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(res.Samples) != 10 {
				t.Fatalf("got %d samples, want 10", len(res.Samples))
			}
			for i, s := range res.Samples {
				if len(s) != 1 {
					t.Fatalf("sample %d has %d coordinates", i, len(s))
				}
			}
			if res.Diag.FinalScale <= 0 {
				t.Fatalf("final scale %v", res.Diag.FinalScale)
			}
			if len(res.Final.Pos) != 1 {
				t.Fatal("missing final state")
			}
		})
	}
}

func TestRunThinningKeepsEveryKth(t *testing.T) {
	cfg := chainConfig(KernelRandomWalk)
	cfg.Thinning = 3
	res, err := Run(cfg, []float64{0}, []float64{0.3}, wideBounds(1), gaussianTarget{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Samples) != cfg.NumResults {
		t.Fatalf("got %d samples, want %d", len(res.Samples), cfg.NumResults)
	}
	// 10 burn-in + 30 sampling transitions recorded
	if len(res.Diag.Accepted) != 40 {
		t.Fatalf("recorded %d transitions, want 40", len(res.Diag.Accepted))
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() Result {
		res, err := Run(chainConfig(KernelHMC), []float64{0.2}, []float64{0.25}, wideBounds(1), gaussianTarget{})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("sample counts differ: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i][0] != b.Samples[i][0] {
			t.Fatalf("sample %d differs: %v vs %v", i, a.Samples[i][0], b.Samples[i][0])
		}
	}
}

func TestRunValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero results", func(c *Config) { c.NumResults = 0 }},
		{"negative burn-in", func(c *Config) { c.BurnIn = -1 }},
		{"negative thinning", func(c *Config) { c.Thinning = -2 }},
		{"bad target accept", func(c *Config) { c.TargetAccept = 1.5 }},
		{"bad kernel", func(c *Config) { c.Kernel = "metropolis" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := chainConfig(KernelRandomWalk)
			tc.mutate(&cfg)
			if _, err := Run(cfg, []float64{0}, []float64{0.3}, wideBounds(1), gaussianTarget{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunRejectsInitialOutsideBounds(t *testing.T) {
	bounds := Bounds{Lower: []float64{0}, Upper: []float64{1}}
	_, err := Run(chainConfig(KernelRandomWalk), []float64{2}, []float64{0.1}, bounds, gaussianTarget{})
	if err == nil {
		t.Fatal("expected error for initial position outside bounds")
	}
}

func TestRunFailsWhenInitialEvaluationFails(t *testing.T) {
	_, err := Run(chainConfig(KernelRandomWalk), []float64{0}, []float64{0.3}, wideBounds(1), &flakyTarget{ok: 0})
	if err == nil {
		t.Fatal("expected error when the initial density evaluation fails")
	}
	var simErr *genob.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("cause should stay inspectable, got %v", err)
	}
}

func TestRunBurnInExhausted(t *testing.T) {
	// One successful evaluation seeds the chain, then the bridge dies:
	// every burn-in proposal fails, which must abort rather than loop.
	_, err := Run(chainConfig(KernelRandomWalk), []float64{0}, []float64{0.3}, wideBounds(1), &flakyTarget{ok: 1})
	if !errors.Is(err, ErrBurnInExhausted) {
		t.Fatalf("got %v, want ErrBurnInExhausted", err)
	}
}

func TestRunCountsSimFailures(t *testing.T) {
	// Initial eval plus the first 5 proposals succeed, the rest fail.
	res, err := Run(chainConfig(KernelRandomWalk), []float64{0}, []float64{0.3}, wideBounds(1), &flakyTarget{ok: 6})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Diag.SimFailures == 0 {
		t.Fatal("expected recorded simulation failures")
	}
	if len(res.Samples) != 10 {
		t.Fatalf("failed proposals must not shrink the sample count, got %d", len(res.Samples))
	}
}
