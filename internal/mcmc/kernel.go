package mcmc

// #region imports
import (
	"errors"
	"fmt"
	"math"

	exprand "golang.org/x/exp/rand"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// #endregion

// #region kernel-name

// KernelName is the tagged kernel variant selected on the command line.
type KernelName string

const (
	KernelRandomWalk KernelName = "random-walk"
	KernelHMC        KernelName = "hmc"
	KernelNUTS       KernelName = "nuts"
)

// ParseKernel validates a kernel name from user input.
func ParseKernel(name string) (KernelName, error) {
	switch KernelName(name) {
	case KernelRandomWalk, KernelHMC, KernelNUTS:
		return KernelName(name), nil
	}
	return "", fmt.Errorf("unsupported kernel %q (want %s, %s or %s)", name, KernelHMC, KernelNUTS, KernelRandomWalk)
}

// #endregion kernel-name

// #region state

// State is a chain position with its cached log-density. Caching keeps
// the surrogate pseudo-marginal: the current point's noisy density is
// never re-drawn.
type State struct {
	Pos  []float64
	LogP float64
}

// StepResult is the outcome of one transition.
type StepResult struct {
	Next        State
	Accepted    bool
	LogAccRatio float64
	SimFailed   bool // proposal rejected because its density evaluation failed
}

// Kernel applies one Metropolis–Hastings transition. Implementations
// share a global step-size scale that burn-in adaptation adjusts.
type Kernel interface {
	Name() KernelName
	Step(cur State, rng *exprand.Rand) (StepResult, error)
	Scale() float64
	SetScale(float64)
}

// #endregion state

// #region base

// base carries what every kernel needs: the target, bounds, the
// per-parameter base step sizes, and the adaptive scale multiplier.
type base struct {
	target LogDensity
	bounds Bounds
	steps  []float64
	scale  float64
}

func (b *base) Scale() float64     { return b.scale }
func (b *base) SetScale(s float64) { b.scale = s }
func (b *base) dim() int           { return len(b.steps) }
func (b *base) eps(i int) float64  { return b.scale * b.steps[i] }

// errSimFailed marks a proposal whose density evaluation failed; the
// step rejects, the chain records it, and sampling continues.
var errSimFailed = errors.New("density evaluation failed")

// logProb evaluates the target with bounds rejection folded in:
// out-of-bounds positions return -Inf without touching the target.
func (b *base) logProb(pos []float64) (float64, error) {
	if !b.bounds.Contains(pos) {
		return math.Inf(-1), nil
	}
	lp, err := b.target.LogProb(pos)
	if err != nil {
		var simErr *genob.SimulationError
		if errors.As(err, &simErr) {
			return math.Inf(-1), errSimFailed
		}
		return 0, err
	}
	return lp, nil
}

// gradient estimates the target gradient by central finite differences.
// The discriminator sits behind an RPC boundary, so no autodiff is
// available; each call costs 2*dim density evaluations.
func (b *base) gradient(pos []float64) ([]float64, error) {
	grad := make([]float64, len(pos))
	probe := make([]float64, len(pos))
	for i := range pos {
		h := fdFraction * b.steps[i]

		copy(probe, pos)
		probe[i] = pos[i] + h
		fwd, err := b.logProb(probe)
		if err != nil {
			return nil, err
		}
		probe[i] = pos[i] - h
		bwd, err := b.logProb(probe)
		if err != nil {
			return nil, err
		}
		if math.IsInf(fwd, -1) || math.IsInf(bwd, -1) {
			// probe stepped over a bound or into a failed region;
			// flat gradient keeps the trajectory integrable
			grad[i] = 0
			continue
		}
		grad[i] = (fwd - bwd) / (2 * h)
	}
	return grad, nil
}

// fdFraction sets the finite-difference probe as a fraction of the
// per-parameter base step size.
const fdFraction = 1e-3

// #endregion base

// #region constructor

// NewKernel builds the named kernel over a target with per-parameter
// base step sizes.
func NewKernel(name KernelName, target LogDensity, bounds Bounds, steps []float64) (Kernel, error) {
	for i, s := range steps {
		if s <= 0 {
			return nil, fmt.Errorf("step size %d must be positive, got %v", i, s)
		}
	}
	b := base{target: target, bounds: bounds, steps: steps, scale: 1}
	switch name {
	case KernelRandomWalk:
		return &RandomWalk{base: b}, nil
	case KernelHMC:
		return &HMC{base: b, LeapfrogSteps: defaultLeapfrogSteps}, nil
	case KernelNUTS:
		return &NUTS{base: b, MaxDepth: defaultMaxDepth}, nil
	}
	return nil, fmt.Errorf("unsupported kernel %q", name)
}

// #endregion constructor
