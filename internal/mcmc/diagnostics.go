package mcmc

// #region imports
import (
	"gonum.org/v1/gonum/stat"
)

// #endregion

// #region acceptance

// AcceptanceRate is the fraction of accepted steps in a trace.
func AcceptanceRate(accepted []bool) float64 {
	if len(accepted) == 0 {
		return 0
	}
	n := 0
	for _, a := range accepted {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(accepted))
}

// #endregion acceptance

// #region ess

// EffectiveSampleSize estimates the effective sample size of a single
// parameter's trace from its empirical autocorrelation, truncating the
// sum at the first non-positive lag.
func EffectiveSampleSize(trace []float64) float64 {
	n := len(trace)
	if n < 3 {
		return float64(n)
	}

	mean := stat.Mean(trace, nil)
	var c0 float64
	for _, x := range trace {
		d := x - mean
		c0 += d * d
	}
	if c0 == 0 {
		return 1 // constant trace carries one sample of information
	}

	var rhoSum float64
	for lag := 1; lag < n/2; lag++ {
		var ck float64
		for i := 0; i < n-lag; i++ {
			ck += (trace[i] - mean) * (trace[i+lag] - mean)
		}
		rho := ck / c0
		if rho <= 0 {
			break
		}
		rhoSum += rho
	}

	ess := float64(n) / (1 + 2*rhoSum)
	if ess > float64(n) {
		ess = float64(n)
	}
	return ess
}

// #endregion ess
