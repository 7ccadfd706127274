package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/monitor"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

// #endregion

// #region phases

// Phase is a state of the iteration machine.
type Phase string

const (
	PhaseInit           Phase = "INIT"
	PhaseTrain          Phase = "TRAIN"
	PhaseCheck          Phase = "CHECK_CONVERGENCE"
	PhaseRunMCMC        Phase = "RUN_MCMC"
	PhaseSummarize      Phase = "SUMMARIZE"
	PhaseUpdateState    Phase = "UPDATE_STATE"
	PhaseRegenerateData Phase = "REGENERATE_DATA"
)

// Status is a terminal state of a run.
type Status string

const (
	// StatusConverged means the discriminator could no longer
	// distinguish real from simulated data.
	StatusConverged Status = "CONVERGED"
	// StatusMaxIters means the iteration budget ran out without
	// convergence. Callers must treat this as "did not converge".
	StatusMaxIters Status = "MAX_ITERS_REACHED"
	// StatusNoOp means max iterations was zero: the run returned the
	// unestimated initial guesses untouched.
	StatusNoOp Status = "NO_OP"
	// StatusFailed means the run ended on a fatal error. Persisted so
	// crashed runs never read as still running.
	StatusFailed Status = "FAILED"
)

// #endregion phases

// #region collaborators

// Bridge is the data generation oracle. Implementations must be
// deterministic given a seed. The controller never inspects simulator
// internals; parallel replicate generation is the bridge's own concern.
type Bridge interface {
	// GenerateTraining produces a labeled real/simulated train+val
	// dataset. When dist is non-nil, simulated replicates draw their
	// parameter points from the posterior instead of the fixed point.
	GenerateTraining(numReps int, point []float64, dist *genob.PosteriorDist, seed uint64) (genob.Dataset, error)

	// Simulate produces replicate matrices at one parameter point, used
	// for surrogate density evaluations.
	Simulate(point []float64, numReps int, seed uint64) ([]genob.Matrix, error)
}

// Trainer is the discriminator training interface. The controller
// depends only on these two operations and their numeric contracts,
// never on the architecture or compute device behind them. The
// discriminator's state persists across Fit calls: it is retrained
// incrementally, not reset each iteration.
type Trainer interface {
	// Fit trains on the labeled dataset and returns validation accuracy
	// in [0, 1].
	Fit(d genob.Dataset, epochs int, learningRate float64, seed uint64) (float64, error)

	// Score returns one logit per matrix.
	Score(mats []genob.Matrix) ([]float64, error)
}

// Bridge and Trainer double as the sampling engine's collaborators.
var (
	_ mcmc.Simulator = Bridge(nil)
	_ mcmc.Scorer    = Trainer(nil)
)

// #endregion collaborators

// #region config

// Config drives a full run.
type Config struct {
	Kernel          mcmc.KernelName
	MaxIterations   int
	Epochs          int
	LearningRate    float64
	NumResults      int // MCMC samples retained per iteration
	BurnIn          int
	Thinning        int
	NumRepsDx       int // simulation replicates per density evaluation
	NumRepsTraining int // replicates per training-data refresh
	TargetAccept    float64
	AdaptMethod     mcmc.AdaptMethod
	Monitor         monitor.Config
	Seed            uint64
}

// DefaultConfig mirrors the CLI defaults.
func DefaultConfig() Config {
	return Config{
		Kernel:          mcmc.KernelHMC,
		MaxIterations:   3,
		Epochs:          5,
		LearningRate:    2e-4,
		NumResults:      10,
		BurnIn:          10,
		Thinning:        1,
		NumRepsDx:       32,
		NumRepsTraining: 1000,
		TargetAccept:    0.65,
		AdaptMethod:     mcmc.AdaptDualAveraging,
		Monitor:         monitor.DefaultConfig(),
	}
}

// #endregion config

// #region records

// IterationRecord is what one completed iteration leaves behind.
// Sampled is false when convergence fired before the sampling phase.
type IterationRecord struct {
	Iteration   int
	Accuracy    float64
	Sampled     bool
	Summaries   []param.Summary
	Traces      map[string][]float64 // raw per-parameter sample arrays
	AcceptRate  float64
	SimFailures int
	ESS         map[string]float64
	Duration    time.Duration
}

// RunResult is the terminal output of a run.
type RunResult struct {
	RunID           string
	Status          Status
	Iterations      []IterationRecord
	AccuracyHistory []float64
	Final           *param.Snapshot
}

// LastSummaries returns the most recent posterior summaries, or nil if
// no sampling phase ever ran.
func (r RunResult) LastSummaries() []param.Summary {
	for i := len(r.Iterations) - 1; i >= 0; i-- {
		if r.Iterations[i].Sampled {
			return r.Iterations[i].Summaries
		}
	}
	return nil
}

// Recorder persists iteration records as they complete. A nil Recorder
// disables persistence.
type Recorder interface {
	RunID() string
	RecordIteration(rec IterationRecord, snap *param.Snapshot) error
	Finish(status Status) error
}

// #endregion records
