package genob

// #region streams

// Stream labels the three independent pseudo-random sub-streams derived
// from the top-level seed. Conflating them breaks reproducibility: a
// change in the number of discriminator draws must not perturb the
// proposal sequence.
type Stream uint64

const (
	StreamSimulation Stream = iota + 1
	StreamTraining
	StreamProposals
)

// #endregion streams

// #region splitmix

// splitmix64 is the finalizer from the SplitMix64 generator, used here
// only for seed derivation.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// SubSeed derives the seed for one sub-stream from the top-level seed.
func SubSeed(seed uint64, s Stream) uint64 {
	return splitmix64(seed ^ splitmix64(uint64(s)))
}

// ReplicateSeed derives a per-replicate seed within a sub-stream, so
// replicate i is identical regardless of worker scheduling.
func ReplicateSeed(streamSeed uint64, i int) uint64 {
	return splitmix64(streamSeed + uint64(i)*0xA24BAED4963EE407)
}

// #endregion splitmix
