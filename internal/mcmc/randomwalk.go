package mcmc

// #region imports
import (
	"errors"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// #endregion

// #region random-walk

// RandomWalk is Metropolis–Hastings with an independent Gaussian
// proposal per coordinate, sigma = scale * step size.
type RandomWalk struct {
	base
}

// Name implements Kernel.
func (k *RandomWalk) Name() KernelName { return KernelRandomWalk }

// Step implements Kernel.
func (k *RandomWalk) Step(cur State, rng *exprand.Rand) (StepResult, error) {
	prop := make([]float64, k.dim())
	for i := range prop {
		prop[i] = distuv.Normal{Mu: cur.Pos[i], Sigma: k.eps(i), Src: rng}.Rand()
	}

	lp, err := k.logProb(prop)
	if err != nil {
		if errors.Is(err, errSimFailed) {
			return StepResult{Next: cur, LogAccRatio: math.Inf(-1), SimFailed: true}, nil
		}
		return StepResult{}, err
	}

	// Symmetric proposal: the ratio is just the density difference.
	logRatio := lp - cur.LogP
	if math.Log(rng.Float64()) < logRatio {
		return StepResult{Next: State{Pos: prop, LogP: lp}, Accepted: true, LogAccRatio: logRatio}, nil
	}
	return StepResult{Next: cur, LogAccRatio: logRatio}, nil
}

// #endregion random-walk
