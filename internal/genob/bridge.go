package genob

// #region local-bridge

// Local is the in-process data generation bridge over the synthetic
// generator, used by replay fixtures, tests, and offline runs. It
// satisfies the controller's Bridge contract structurally.
type Local struct {
	G           *Genobuilder
	Parallelism int // 0 = all cores
}

// Simulate produces replicate matrices at one parameter point.
func (l Local) Simulate(point []float64, numReps int, seed uint64) ([]Matrix, error) {
	return l.G.Simulate(point, numReps, seed, l.Parallelism)
}

// GenerateTraining produces a labeled real/simulated dataset.
func (l Local) GenerateTraining(numReps int, point []float64, dist *PosteriorDist, seed uint64) (Dataset, error) {
	return l.G.GenerateData(numReps, point, dist, seed, l.Parallelism)
}

// #endregion local-bridge
