package mcmc

// #region imports
import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// #endregion

// #region interfaces

// LogDensity evaluates the target log-density at a position vector.
// A *genob.SimulationError return means the single evaluation failed and
// the proposal should be rejected; any other error aborts the chain.
type LogDensity interface {
	LogProb(pos []float64) (float64, error)
}

// Simulator produces simulated replicate matrices at a parameter point.
type Simulator interface {
	Simulate(point []float64, numReps int, seed uint64) ([]genob.Matrix, error)
}

// Scorer scores genotype matrices with the discriminator, returning one
// logit per matrix.
type Scorer interface {
	Score(mats []genob.Matrix) ([]float64, error)
}

// #endregion interfaces

// #region bounds

// Bounds holds the declared per-parameter lower and upper limits. The
// chain explores the full declared bounds by rejecting out-of-bounds
// proposals outright (log-density -Inf), never by clipping.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Contains reports whether pos lies within the bounds.
func (b Bounds) Contains(pos []float64) bool {
	for i, x := range pos {
		if x < b.Lower[i] || x > b.Upper[i] {
			return false
		}
	}
	return true
}

// #endregion bounds

// #region surrogate

// Surrogate is the discriminator-derived target: the log-density at a
// point is the mean discriminator logit over numReps simulated
// replicates generated at that point. Each evaluation draws a fresh
// deterministic sub-seed, so two chains with the same seed see the same
// noise sequence.
type Surrogate struct {
	sim     Simulator
	scorer  Scorer
	numReps int
	seed    uint64
	calls   uint64
}

// NewSurrogate builds the surrogate target. numReps is the number of
// simulation replicates per density evaluation.
func NewSurrogate(sim Simulator, scorer Scorer, numReps int, seed uint64) *Surrogate {
	return &Surrogate{sim: sim, scorer: scorer, numReps: numReps, seed: seed}
}

// LogProb implements LogDensity.
func (s *Surrogate) LogProb(pos []float64) (float64, error) {
	s.calls++
	callSeed := genob.ReplicateSeed(s.seed, int(s.calls))

	mats, err := s.sim.Simulate(pos, s.numReps, callSeed)
	if err != nil {
		var simErr *genob.SimulationError
		if errors.As(err, &simErr) {
			return math.Inf(-1), err
		}
		return 0, fmt.Errorf("simulate at %v: %w", pos, err)
	}

	logits, err := s.scorer.Score(mats)
	if err != nil {
		return 0, fmt.Errorf("score batch at %v: %w", pos, err)
	}
	if len(logits) == 0 {
		return 0, &genob.SimulationError{Point: pos, Reason: "empty batch"}
	}

	var sum float64
	for _, l := range logits {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return 0, fmt.Errorf("non-finite discriminator logit %v at %v", l, pos)
		}
		sum += l
	}
	return sum / float64(len(logits)), nil
}

// #endregion surrogate
