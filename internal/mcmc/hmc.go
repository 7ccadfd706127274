package mcmc

// #region imports
import (
	"errors"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// #endregion

// #region hmc

const defaultLeapfrogSteps = 10

// HMC is Hamiltonian Monte Carlo with a unit mass matrix, leapfrog
// integration, and finite-difference gradients of the surrogate.
type HMC struct {
	base
	LeapfrogSteps int
}

// Name implements Kernel.
func (k *HMC) Name() KernelName { return KernelHMC }

// Step implements Kernel.
func (k *HMC) Step(cur State, rng *exprand.Rand) (StepResult, error) {
	dim := k.dim()
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	mom := make([]float64, dim)
	for i := range mom {
		mom[i] = unit.Rand()
	}
	curJoint := logJoint(cur.LogP, mom)

	pos := append([]float64(nil), cur.Pos...)
	lp := cur.LogP

	grad, err := k.gradient(pos)
	if err != nil {
		return k.trajectoryFailure(cur, err)
	}

	for step := 0; step < k.LeapfrogSteps; step++ {
		// half-step momentum, full-step position, half-step momentum
		for i := range mom {
			mom[i] += 0.5 * k.eps(i) * grad[i]
		}
		for i := range pos {
			pos[i] += k.eps(i) * mom[i]
		}
		lp, err = k.logProb(pos)
		if err != nil {
			return k.trajectoryFailure(cur, err)
		}
		if math.IsInf(lp, -1) {
			// left the declared bounds: reject the whole trajectory
			return StepResult{Next: cur, LogAccRatio: math.Inf(-1)}, nil
		}
		grad, err = k.gradient(pos)
		if err != nil {
			return k.trajectoryFailure(cur, err)
		}
		for i := range mom {
			mom[i] += 0.5 * k.eps(i) * grad[i]
		}
	}

	logRatio := logJoint(lp, mom) - curJoint
	if math.IsNaN(logRatio) {
		logRatio = math.Inf(-1)
	}
	if math.Log(rng.Float64()) < logRatio {
		return StepResult{Next: State{Pos: pos, LogP: lp}, Accepted: true, LogAccRatio: logRatio}, nil
	}
	return StepResult{Next: cur, LogAccRatio: logRatio}, nil
}

// trajectoryFailure maps a failed density evaluation inside the
// trajectory to a single-proposal rejection; other errors abort.
func (k *HMC) trajectoryFailure(cur State, err error) (StepResult, error) {
	if errors.Is(err, errSimFailed) {
		return StepResult{Next: cur, LogAccRatio: math.Inf(-1), SimFailed: true}, nil
	}
	return StepResult{}, err
}

// logJoint is the log joint density of position and momentum under a
// unit mass matrix.
func logJoint(logp float64, mom []float64) float64 {
	var kin float64
	for _, p := range mom {
		kin += 0.5 * p * p
	}
	return logp - kin
}

// #endregion hmc
