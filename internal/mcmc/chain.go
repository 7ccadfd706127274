package mcmc

// #region imports
import (
	"errors"
	"fmt"
	"log"
	"math"

	exprand "golang.org/x/exp/rand"
)

// #endregion

// #region config

// Config drives a single chain run.
type Config struct {
	Kernel       KernelName
	NumResults   int // retained samples after burn-in and thinning
	BurnIn       int
	Thinning     int // keep every k-th post-burn-in state; 0 means 1
	TargetAccept float64
	AdaptMethod  AdaptMethod
	Seed         uint64
}

// Diagnostics holds the per-step traces emitted alongside samples.
type Diagnostics struct {
	Accepted    []bool
	LogAccRatio []float64
	StepScale   []float64
	AcceptRate  float64 // sampling-phase acceptance fraction
	SimFailures int
	FinalScale  float64
}

// Result bundles the ordered sample sequence with diagnostics and the
// final chain state, which the next iteration may warm-start from.
type Result struct {
	Samples [][]float64 // NumResults rows, one coordinate per inferable parameter
	Final   State
	Diag    Diagnostics
}

// ErrBurnInExhausted means the bridge failed to produce a batch for
// every proposal across the whole burn-in window. Retrying forever
// would loop on a broken configuration, so this is fatal.
var ErrBurnInExhausted = errors.New("simulation failed for every proposal during burn-in")

// #endregion config

// #region run

// Run executes one adaptive chain: burn-in with step-size adaptation
// toward the target acceptance rate, then NumResults*Thinning sampling
// steps of which every Thinning-th state is retained.
func Run(cfg Config, initial, steps []float64, bounds Bounds, target LogDensity) (Result, error) {
	if cfg.NumResults <= 0 {
		return Result{}, fmt.Errorf("num results must be positive, got %d", cfg.NumResults)
	}
	if cfg.BurnIn < 0 {
		return Result{}, fmt.Errorf("burn-in must be non-negative, got %d", cfg.BurnIn)
	}
	if cfg.Thinning == 0 {
		cfg.Thinning = 1
	}
	if cfg.Thinning < 1 {
		return Result{}, fmt.Errorf("thinning must be at least 1, got %d", cfg.Thinning)
	}
	if len(initial) != len(steps) {
		return Result{}, fmt.Errorf("initial position has %d coordinates, step sizes have %d", len(initial), len(steps))
	}
	if !bounds.Contains(initial) {
		return Result{}, fmt.Errorf("initial position %v outside declared bounds", initial)
	}

	kern, err := NewKernel(cfg.Kernel, target, bounds, steps)
	if err != nil {
		return Result{}, err
	}
	adapter, err := NewAdapter(cfg.AdaptMethod, kern.Scale(), cfg.TargetAccept)
	if err != nil {
		return Result{}, err
	}

	// The current point's density is evaluated once and cached; a
	// failure here means the starting configuration itself is bad.
	lp, err := target.LogProb(initial)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate initial position: %w", err)
	}
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return Result{}, fmt.Errorf("initial position %v has non-finite log-density", initial)
	}

	rng := exprand.New(exprand.NewSource(cfg.Seed))
	cur := State{Pos: append([]float64(nil), initial...), LogP: lp}

	var diag Diagnostics

	// --- burn-in: adapt, discard ---
	burninEvals := 0
	for i := 0; i < cfg.BurnIn; i++ {
		res, err := kern.Step(cur, rng)
		if err != nil {
			return Result{}, fmt.Errorf("burn-in step %d: %w", i, err)
		}
		if res.SimFailed {
			diag.SimFailures++
		} else {
			burninEvals++
		}
		kern.SetScale(adapter.Update(acceptProb(res.LogAccRatio)))
		recordStep(&diag, res, kern.Scale())
		cur = res.Next
	}
	if cfg.BurnIn > 0 && burninEvals == 0 {
		return Result{}, fmt.Errorf("%w (%d proposals)", ErrBurnInExhausted, cfg.BurnIn)
	}
	kern.SetScale(adapter.Final())
	diag.FinalScale = kern.Scale()
	log.Printf("[MCMC] kernel=%s burn-in done: scale=%.4g sim_failures=%d", kern.Name(), kern.Scale(), diag.SimFailures)

	// --- sampling: fixed scale, thin, retain ---
	samples := make([][]float64, 0, cfg.NumResults)
	accepted := 0
	total := cfg.NumResults * cfg.Thinning
	for i := 0; i < total; i++ {
		res, err := kern.Step(cur, rng)
		if err != nil {
			return Result{}, fmt.Errorf("sampling step %d: %w", i, err)
		}
		if res.SimFailed {
			diag.SimFailures++
		}
		if res.Accepted {
			accepted++
		}
		recordStep(&diag, res, kern.Scale())
		cur = res.Next
		if (i+1)%cfg.Thinning == 0 {
			samples = append(samples, append([]float64(nil), cur.Pos...))
		}
	}
	diag.AcceptRate = float64(accepted) / float64(total)

	return Result{Samples: samples, Final: cur, Diag: diag}, nil
}

// #endregion run

// #region helpers

func recordStep(d *Diagnostics, res StepResult, scale float64) {
	d.Accepted = append(d.Accepted, res.Accepted)
	d.LogAccRatio = append(d.LogAccRatio, res.LogAccRatio)
	d.StepScale = append(d.StepScale, scale)
}

// acceptProb converts a log acceptance ratio to the acceptance
// probability used by the adapters.
func acceptProb(logRatio float64) float64 {
	if math.IsNaN(logRatio) || math.IsInf(logRatio, -1) {
		return 0
	}
	if logRatio >= 0 {
		return 1
	}
	return math.Exp(logRatio)
}

// #endregion helpers
