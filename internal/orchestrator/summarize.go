package orchestrator

// #region imports
import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

// #endregion

// #region summarize

// Summarize reduces a chain's samples (rows = retained draws, columns =
// inferable parameters in fixed order) to per-parameter posterior
// summaries: median center, standard-deviation spread, and the
// empirical 2.5/97.5 percentile interval. It also returns the raw
// per-parameter traces and their effective sample sizes for
// diagnostics.
func Summarize(inferable []param.Parameter, samples [][]float64) ([]param.Summary, map[string][]float64, map[string]float64, error) {
	if len(samples) == 0 {
		return nil, nil, nil, fmt.Errorf("no samples to summarize")
	}
	for i, row := range samples {
		if len(row) != len(inferable) {
			return nil, nil, nil, fmt.Errorf("sample %d has %d coordinates, want %d", i, len(row), len(inferable))
		}
	}

	summaries := make([]param.Summary, len(inferable))
	traces := make(map[string][]float64, len(inferable))
	ess := make(map[string]float64, len(inferable))

	for j, p := range inferable {
		trace := make([]float64, len(samples))
		for i, row := range samples {
			v := row[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, nil, fmt.Errorf("parameter %q: non-finite sample at draw %d", p.Name, i)
			}
			trace[i] = v
		}

		sorted := append([]float64(nil), trace...)
		sort.Float64s(sorted)

		center := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		low := stat.Quantile(0.025, stat.Empirical, sorted, nil)
		high := stat.Quantile(0.975, stat.Empirical, sorted, nil)
		spread := stat.StdDev(trace, nil)
		if math.IsNaN(spread) {
			spread = 0
		}
		if !(low < high) {
			// degenerate posterior: widen by epsilon so bounds stay an interval
			low -= 1e-9
			high += 1e-9
		}

		summaries[j] = param.Summary{Name: p.Name, Center: center, Spread: spread, Low: low, High: high}
		traces[p.Name] = trace
		ess[p.Name] = mcmc.EffectiveSampleSize(trace)
	}

	return summaries, traces, ess, nil
}

// posteriorDist converts summaries into the per-parameter Gaussians the
// bridge draws simulation points from when regenerating training data.
func posteriorDist(summaries []param.Summary) (center, spread []float64) {
	center = make([]float64, len(summaries))
	spread = make([]float64, len(summaries))
	for i, s := range summaries {
		center[i] = s.Center
		sp := s.Spread
		if sp <= 0 {
			sp = 1e-9
		}
		spread[i] = sp
	}
	return center, spread
}

// #endregion summarize
