package mcmc

// #region imports
import (
	"fmt"
	"math"
)

// #endregion

// #region adapter

// AdaptMethod selects the burn-in step-size adaptation scheme.
type AdaptMethod string

const (
	AdaptDualAveraging AdaptMethod = "dual-averaging"
	AdaptProportional  AdaptMethod = "proportional"
)

// Adapter drives the kernel's step-size scale toward a target
// acceptance rate during burn-in. Update takes the acceptance
// probability of the last step and returns the scale for the next one;
// Final returns the scale to freeze for the sampling phase.
type Adapter interface {
	Update(alpha float64) float64
	Final() float64
}

// NewAdapter builds the named adapter starting from initScale.
func NewAdapter(m AdaptMethod, initScale, targetAccept float64) (Adapter, error) {
	if targetAccept <= 0 || targetAccept >= 1 {
		return nil, fmt.Errorf("target acceptance rate must be in (0, 1), got %v", targetAccept)
	}
	switch m {
	case AdaptDualAveraging, "":
		return newDualAveraging(initScale, targetAccept), nil
	case AdaptProportional:
		return newProportional(initScale, targetAccept), nil
	}
	return nil, fmt.Errorf("unsupported adaptation method %q", m)
}

// #endregion adapter

// #region dual-averaging

// dualAveraging is the Nesterov dual-averaging scheme from the NUTS
// paper (Hoffman & Gelman 2014, §3.2) with the standard constants.
type dualAveraging struct {
	mu        float64
	target    float64
	t         float64
	hbar      float64
	logEps    float64
	logEpsBar float64
}

const (
	daGamma = 0.05
	daT0    = 10
	daKappa = 0.75
)

func newDualAveraging(initScale, target float64) *dualAveraging {
	return &dualAveraging{
		mu:        math.Log(10 * initScale),
		target:    target,
		logEps:    math.Log(initScale),
		logEpsBar: math.Log(initScale),
	}
}

func (d *dualAveraging) Update(alpha float64) float64 {
	d.t++
	frac := 1 / (d.t + daT0)
	d.hbar = (1-frac)*d.hbar + frac*(d.target-alpha)
	d.logEps = d.mu - math.Sqrt(d.t)/daGamma*d.hbar
	eta := math.Pow(d.t, -daKappa)
	d.logEpsBar = eta*d.logEps + (1-eta)*d.logEpsBar
	return math.Exp(d.logEps)
}

func (d *dualAveraging) Final() float64 {
	return math.Exp(d.logEpsBar)
}

// #endregion dual-averaging

// #region proportional

// proportional is the simpler windowed scheme: after each window of
// steps, scale the step size by exp(observed - target) acceptance.
type proportional struct {
	scale   float64
	target  float64
	window  int
	pending float64
	count   int
}

const propWindow = 25

func newProportional(initScale, target float64) *proportional {
	return &proportional{scale: initScale, target: target, window: propWindow}
}

func (p *proportional) Update(alpha float64) float64 {
	p.pending += alpha
	p.count++
	if p.count >= p.window {
		observed := p.pending / float64(p.count)
		p.scale *= math.Exp(observed - p.target)
		p.pending = 0
		p.count = 0
	}
	return p.scale
}

func (p *proportional) Final() float64 { return p.scale }

// #endregion proportional
