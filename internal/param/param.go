package param

// #region imports
import (
	"fmt"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// #endregion

// #region parameter

// Parameter is the per-parameter state carried by a snapshot.
type Parameter struct {
	Name      string  `json:"name"`
	Inferable bool    `json:"inferable"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Estimate  float64 `json:"estimate"`
	StepSize  float64 `json:"step_size"`
}

// Summary is the posterior summary applied to one parameter at the end
// of an iteration. Center is the posterior median, Spread the posterior
// standard deviation, Low/High the empirical 2.5/97.5 percentiles.
type Summary struct {
	Name   string  `json:"name"`
	Center float64 `json:"center"`
	Spread float64 `json:"spread"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
}

// #endregion parameter

// #region snapshot

// Snapshot is an immutable parameter-state view for one iteration.
// The inferable subset and its ordering are fixed for the lifetime of a
// run; chain position vectors index into that ordering. Updates produce
// a new Snapshot, never mutate an existing one.
type Snapshot struct {
	params    []Parameter
	inferable []int // indices into params, declaration order
}

// minStepSize keeps the step-size invariant (> 0) when a posterior
// collapses to zero spread.
const minStepSize = 1e-9

// initialStepFraction sets the first iteration's step size as a
// fraction of the declared bounds width.
const initialStepFraction = 0.1

// New builds a snapshot from explicit parameter states.
func New(params []Parameter) (*Snapshot, error) {
	s := &Snapshot{params: make([]Parameter, len(params))}
	copy(s.params, params)
	seen := make(map[string]bool, len(params))
	for i, p := range s.params {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if p.StepSize <= 0 {
			return nil, fmt.Errorf("parameter %q: step size must be positive, got %v", p.Name, p.StepSize)
		}
		if p.Inferable {
			s.inferable = append(s.inferable, i)
		}
	}
	if len(s.inferable) == 0 {
		return nil, fmt.Errorf("no inferable parameters")
	}
	return s, nil
}

// FromGenobuilder builds the initial snapshot from the simulation
// configuration: estimate = initial guess, step size = a fixed fraction
// of the bounds width.
func FromGenobuilder(g *genob.Genobuilder) (*Snapshot, error) {
	params := make([]Parameter, len(g.Params))
	for i, d := range g.Params {
		params[i] = Parameter{
			Name:      d.Name,
			Inferable: d.Inferable,
			Lower:     d.Lower,
			Upper:     d.Upper,
			Estimate:  d.InitialGuess,
			StepSize:  initialStepFraction * (d.Upper - d.Lower),
		}
	}
	return New(params)
}

// #endregion snapshot

// #region accessors

// Params returns a copy of all parameter states in declaration order.
func (s *Snapshot) Params() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Inferable returns the inferable parameters in their fixed order.
func (s *Snapshot) Inferable() []Parameter {
	out := make([]Parameter, len(s.inferable))
	for i, idx := range s.inferable {
		out[i] = s.params[idx]
	}
	return out
}

// NumInferable returns the number of inferable parameters.
func (s *Snapshot) NumInferable() int { return len(s.inferable) }

// Position returns the current point estimates of the inferable
// parameters, in chain-position order.
func (s *Snapshot) Position() []float64 {
	out := make([]float64, len(s.inferable))
	for i, idx := range s.inferable {
		out[i] = s.params[idx].Estimate
	}
	return out
}

// StepSizes returns the per-parameter step sizes in chain-position order.
func (s *Snapshot) StepSizes() []float64 {
	out := make([]float64, len(s.inferable))
	for i, idx := range s.inferable {
		out[i] = s.params[idx].StepSize
	}
	return out
}

// Bounds returns the inferable lower and upper bounds in chain-position order.
func (s *Snapshot) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(s.inferable))
	upper = make([]float64, len(s.inferable))
	for i, idx := range s.inferable {
		lower[i] = s.params[idx].Lower
		upper[i] = s.params[idx].Upper
	}
	return lower, upper
}

// Get looks up a parameter by name.
func (s *Snapshot) Get(name string) (Parameter, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// #endregion accessors

// #region apply-summary

// ApplySummary produces the next iteration's snapshot from per-parameter
// posterior summaries: new estimate = center, new step size = spread
// (floored to stay positive), new bounds = the percentile interval.
// The summaries must cover exactly the inferable subset in its fixed
// order; anything else is a structural change, which is unsupported
// mid-run.
func (s *Snapshot) ApplySummary(summaries []Summary) (*Snapshot, error) {
	if len(summaries) != len(s.inferable) {
		return nil, fmt.Errorf("got %d summaries for %d inferable parameters", len(summaries), len(s.inferable))
	}

	next := make([]Parameter, len(s.params))
	copy(next, s.params)

	for i, sum := range summaries {
		idx := s.inferable[i]
		if sum.Name != s.params[idx].Name {
			return nil, fmt.Errorf("summary %d is for %q, want %q: inferable set must not change mid-run", i, sum.Name, s.params[idx].Name)
		}
		if !(sum.Low < sum.High) {
			return nil, fmt.Errorf("parameter %q: interval [%v, %v] is empty", sum.Name, sum.Low, sum.High)
		}
		step := sum.Spread
		if step < minStepSize {
			step = minStepSize
		}
		next[idx].Estimate = sum.Center
		next[idx].StepSize = step
		next[idx].Lower = sum.Low
		next[idx].Upper = sum.High
	}

	return New(next)
}

// #endregion apply-summary
