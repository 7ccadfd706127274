package genob

import (
	"fmt"
	"runtime"
	"sync"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// The synthetic generator below is the in-process stand-in for the real
// msprime simulation, used by fixtures, tests, and offline runs. Real
// runs go through the sidecar bridge instead. It is deterministic given
// a stream seed: replicate i always uses ReplicateSeed(seed, i),
// regardless of worker scheduling.

// #region posterior-dist

// PosteriorDist describes a per-parameter Gaussian over the inferable
// parameters, used to draw simulation points from the current posterior
// instead of a single fixed point.
type PosteriorDist struct {
	Center []float64
	Spread []float64
}

// #endregion posterior-dist

// #region simulate

// Simulate produces numReps genotype matrices at one inferable-parameter
// point. workers bounds the fan-out; 0 means all available cores.
// Out-of-bounds points return a *SimulationError.
func (g *Genobuilder) Simulate(point []float64, numReps int, seed uint64, workers int) ([]Matrix, error) {
	inf := g.Inferable()
	if len(point) != len(inf) {
		return nil, &SimulationError{Point: point, Reason: fmt.Sprintf("got %d coordinates, want %d", len(point), len(inf))}
	}
	for i, p := range inf {
		if point[i] < p.Lower || point[i] > p.Upper {
			return nil, &SimulationError{Point: point, Reason: fmt.Sprintf("%s=%v outside [%v, %v]", p.Name, point[i], p.Lower, p.Upper)}
		}
	}

	mats := make([]Matrix, numReps)
	g.forEachReplicate(numReps, seed, workers, func(i int, rng *exprand.Rand) {
		mats[i] = g.simulateOne(point, rng)
	})
	return mats, nil
}

// #endregion simulate

// #region generate-data

// GenerateData builds a labeled train/val dataset mixing real batches
// (label 1, generated at the hidden truth point) with simulated batches
// (label 0). When dist is non-nil, each simulated replicate draws its own
// parameter point from the per-parameter posterior Gaussians, clamped to
// the declared bounds; otherwise all simulated replicates use point.
func (g *Genobuilder) GenerateData(numReps int, point []float64, dist *PosteriorDist, seed uint64, workers int) (Dataset, error) {
	if numReps <= 0 {
		return Dataset{}, &SimulationError{Point: point, Reason: fmt.Sprintf("need at least one replicate, got %d", numReps)}
	}
	inf := g.Inferable()
	if dist == nil {
		if len(point) != len(inf) {
			return Dataset{}, &SimulationError{Point: point, Reason: fmt.Sprintf("got %d coordinates, want %d", len(point), len(inf))}
		}
	} else if len(dist.Center) != len(inf) || len(dist.Spread) != len(inf) {
		return Dataset{}, &SimulationError{Reason: "posterior distribution arity does not match inferable parameters"}
	}

	truth := g.TruthPoint()
	real := make([]Matrix, numReps)
	sim := make([]Matrix, numReps)

	g.forEachReplicate(numReps, seed, workers, func(i int, rng *exprand.Rand) {
		real[i] = g.simulateOne(truth, rng)

		pt := point
		if dist != nil {
			pt = make([]float64, len(inf))
			for j, p := range inf {
				v := distuv.Normal{Mu: dist.Center[j], Sigma: dist.Spread[j], Src: rng}.Rand()
				if v < p.Lower {
					v = p.Lower
				}
				if v > p.Upper {
					v = p.Upper
				}
				pt[j] = v
			}
		}
		sim[i] = g.simulateOne(pt, rng)
	})

	// Deterministic 90/10 split, alternating real/simulated within each set.
	nVal := numReps / 10
	if nVal < 1 {
		nVal = 1
	}
	nTrain := numReps - nVal

	var d Dataset
	for i := 0; i < nTrain; i++ {
		d.Train.X = append(d.Train.X, real[i], sim[i])
		d.Train.Y = append(d.Train.Y, 1, 0)
	}
	for i := nTrain; i < numReps; i++ {
		d.Val.X = append(d.Val.X, real[i], sim[i])
		d.Val.Y = append(d.Val.Y, 1, 0)
	}
	return d, nil
}

// TruthPoint returns the hidden true value per inferable parameter,
// falling back to the initial guess where no truth is declared.
func (g *Genobuilder) TruthPoint() []float64 {
	inf := g.Inferable()
	pt := make([]float64, len(inf))
	for i, p := range inf {
		if p.Truth != 0 {
			pt[i] = p.Truth
		} else {
			pt[i] = p.InitialGuess
		}
	}
	return pt
}

// #endregion generate-data

// #region fan-out

// forEachReplicate runs body for each replicate index with a bounded
// number of concurrent goroutines. Each replicate gets its own seeded
// generator so output is independent of scheduling.
func (g *Genobuilder) forEachReplicate(n int, seed uint64, workers int, body func(i int, rng *exprand.Rand)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			body(i, exprand.New(exprand.NewSource(ReplicateSeed(seed, i))))
		}(i)
	}
	wg.Wait()
}

// #endregion fan-out

// #region simulate-one

// simulateOne draws a single genotype matrix. Columns are sites: each
// site draws an allele frequency from a Beta shaped by the parameter
// point's position within its bounds, then rows are Bernoulli draws at
// that frequency. A toy coalescent, but monotone in every parameter, so
// the discriminator has a real signal to find.
func (g *Genobuilder) simulateOne(point []float64, rng *exprand.Rand) Matrix {
	inf := g.Inferable()

	// signal in (0,1): mean normalized position across inferable params
	var signal float64
	for i, p := range inf {
		signal += (point[i] - p.Lower) / (p.Upper - p.Lower)
	}
	if len(inf) > 0 {
		signal /= float64(len(inf))
	}
	if signal < 1e-3 {
		signal = 1e-3
	}
	if signal > 1-1e-3 {
		signal = 1 - 1e-3
	}

	beta := distuv.Beta{Alpha: 0.5 + 4*signal, Beta: 0.5 + 4*(1-signal), Src: rng}
	m := Matrix{Rows: g.NumSamples, Cols: g.FixedDim, Data: make([]float32, g.NumSamples*g.FixedDim)}
	for c := 0; c < g.FixedDim; c++ {
		freq := beta.Rand()
		for r := 0; r < g.NumSamples; r++ {
			if rng.Float64() < freq {
				m.Data[r*g.FixedDim+c] = 1
			}
		}
	}
	return m
}

// #endregion simulate-one
