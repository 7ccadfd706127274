package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/monitor"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

// #endregion

// #region orchestrator-struct

// Orchestrator sequences discriminator training, convergence checking,
// MCMC sampling, posterior summarizing, parameter-state updates, and
// training-data regeneration. It exclusively owns chain state and
// iteration records; the discriminator is owned by the Trainer and only
// referenced here.
type Orchestrator struct {
	bridge  Bridge
	trainer Trainer
	mon     *monitor.Monitor
	rec     Recorder // nil = no persistence
	cfg     Config
}

// New validates the configuration and wires an orchestrator.
func New(cfg Config, bridge Bridge, trainer Trainer, rec Recorder) (*Orchestrator, error) {
	if bridge == nil || trainer == nil {
		return nil, &ConfigError{Reason: "bridge and trainer are required"}
	}
	if cfg.MaxIterations < 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max iterations must be non-negative, got %d", cfg.MaxIterations)}
	}
	if cfg.NumResults <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("num MCMC samples must be positive, got %d", cfg.NumResults)}
	}
	if cfg.NumRepsDx <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("num reps per density evaluation must be positive, got %d", cfg.NumRepsDx)}
	}
	if cfg.NumRepsTraining <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("num training replicates must be positive, got %d", cfg.NumRepsTraining)}
	}
	if cfg.Epochs <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("epochs must be positive, got %d", cfg.Epochs)}
	}
	if _, err := mcmc.ParseKernel(string(cfg.Kernel)); err != nil {
		return nil, &ConfigError{Reason: "kernel", Err: err}
	}
	mon, err := monitor.New(cfg.Monitor)
	if err != nil {
		return nil, &ConfigError{Reason: "convergence policy", Err: err}
	}
	return &Orchestrator{bridge: bridge, trainer: trainer, mon: mon, rec: rec, cfg: cfg}, nil
}

// #endregion orchestrator-struct

// #region run

// Run executes the iteration loop from the given initial snapshot until
// convergence or the iteration budget runs out. When initialData is
// non-nil it replaces the initial bridge call (pre-generated dataset).
//
// Collaborator calls are blocking with no timeouts: a stalled bridge or
// trainer stalls the whole run. Cancellation via ctx is honored only at
// iteration boundaries; a started training step or chain always runs to
// completion first.
func (o *Orchestrator) Run(ctx context.Context, snap *param.Snapshot, initialData *genob.Dataset) (RunResult, error) {
	if snap == nil || snap.NumInferable() == 0 {
		return o.abort(RunResult{}, &ConfigError{Reason: "no inferable parameters"})
	}

	result := RunResult{RunID: uuid.New().String(), Final: snap}
	if o.rec != nil {
		result.RunID = o.rec.RunID()
	}

	if o.cfg.MaxIterations == 0 {
		result.Status = StatusNoOp
		log.Printf("[LOOP] run=%s max iterations is zero, returning initial guesses", result.RunID)
		return o.finish(result)
	}

	simSeed := genob.SubSeed(o.cfg.Seed, genob.StreamSimulation)
	trainSeed := genob.SubSeed(o.cfg.Seed, genob.StreamTraining)
	mcmcSeed := genob.SubSeed(o.cfg.Seed, genob.StreamProposals)

	// INIT: initial labeled dataset. A simulation failure here is fatal.
	data, err := o.initialData(snap, initialData, simSeed)
	if err != nil {
		return o.abort(result, err)
	}

	for it := 1; it <= o.cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return o.abort(result, fmt.Errorf("run cancelled before iteration %d: %w", it, err))
		}
		started := time.Now()

		// TRAIN
		acc, err := o.train(it, data, genob.ReplicateSeed(trainSeed, it))
		if err != nil {
			return o.abort(result, err)
		}
		result.AccuracyHistory = append(result.AccuracyHistory, acc)

		// CHECK_CONVERGENCE
		dec, err := o.mon.Check(it, acc)
		if err != nil {
			return o.abort(result, &StageError{Stage: StageTraining, Iteration: it, Err: err})
		}
		if dec.Converged {
			rec := IterationRecord{Iteration: it, Accuracy: acc, Duration: time.Since(started)}
			result.Iterations = append(result.Iterations, rec)
			result.Status = StatusConverged
			log.Printf("[LOOP] iter=%d converged: %s", it, dec.Reason)
			o.record(rec, snap)
			return o.finish(result)
		}
		log.Printf("[LOOP] iter=%d accuracy=%.4f (%s)", it, acc, dec.Reason)

		// RUN_MCMC
		chainRes, err := o.sample(it, snap, genob.ReplicateSeed(simSeed, it*2), genob.ReplicateSeed(mcmcSeed, it))
		if err != nil {
			return o.abort(result, err)
		}

		// SUMMARIZE
		summaries, traces, ess, err := Summarize(snap.Inferable(), chainRes.Samples)
		if err != nil {
			return o.abort(result, &StageError{Stage: StageSampling, Iteration: it, Err: err})
		}

		// UPDATE_STATE: a fresh immutable snapshot, never in-place mutation
		next, err := snap.ApplySummary(summaries)
		if err != nil {
			return o.abort(result, &ConfigError{Reason: fmt.Sprintf("posterior update at iteration %d", it), Err: err})
		}
		snap = next
		result.Final = snap

		// REGENERATE_DATA: draw simulation points from the new posterior
		center, spread := posteriorDist(summaries)
		data, err = o.bridge.GenerateTraining(
			o.cfg.NumRepsTraining, snap.Position(),
			&genob.PosteriorDist{Center: center, Spread: spread},
			genob.ReplicateSeed(simSeed, it*2+1),
		)
		if err != nil {
			return o.abort(result, &StageError{Stage: StageDataGeneration, Iteration: it, Err: err})
		}

		rec := IterationRecord{
			Iteration:   it,
			Accuracy:    acc,
			Sampled:     true,
			Summaries:   summaries,
			Traces:      traces,
			AcceptRate:  chainRes.Diag.AcceptRate,
			SimFailures: chainRes.Diag.SimFailures,
			ESS:         ess,
			Duration:    time.Since(started),
		}
		result.Iterations = append(result.Iterations, rec)
		o.record(rec, snap)
		log.Printf("[LOOP] iter=%d done in %s: accept_rate=%.3f sim_failures=%d",
			it, rec.Duration.Round(time.Millisecond), rec.AcceptRate, rec.SimFailures)
	}

	result.Status = StatusMaxIters
	log.Printf("[LOOP] did not converge within %d iterations", o.cfg.MaxIterations)
	return o.finish(result)
}

// #endregion run

// #region stages

func (o *Orchestrator) initialData(snap *param.Snapshot, pre *genob.Dataset, simSeed uint64) (genob.Dataset, error) {
	if pre != nil {
		log.Printf("[LOOP] using pre-generated dataset (%d train, %d val)", len(pre.Train.X), len(pre.Val.X))
		return *pre, nil
	}
	data, err := o.bridge.GenerateTraining(o.cfg.NumRepsTraining, snap.Position(), nil, genob.ReplicateSeed(simSeed, 0))
	if err != nil {
		// fatal here, unlike during sampling
		return genob.Dataset{}, &StageError{Stage: StageDataGeneration, Iteration: 0, Err: err}
	}
	return data, nil
}

func (o *Orchestrator) train(it int, data genob.Dataset, seed uint64) (float64, error) {
	acc, err := o.trainer.Fit(data, o.cfg.Epochs, o.cfg.LearningRate, seed)
	if err != nil {
		return 0, &StageError{Stage: StageTraining, Iteration: it, Err: err}
	}
	if acc != acc { // NaN
		return 0, &TrainingDivergenceError{Iteration: it, Detail: "validation accuracy is NaN"}
	}
	if acc < 0 || acc > 1 {
		return 0, &TrainingDivergenceError{Iteration: it, Detail: fmt.Sprintf("validation accuracy %v outside [0, 1]", acc)}
	}
	return acc, nil
}

func (o *Orchestrator) sample(it int, snap *param.Snapshot, surrogateSeed, chainSeed uint64) (mcmc.Result, error) {
	lower, upper := snap.Bounds()
	target := mcmc.NewSurrogate(o.bridge, o.trainer, o.cfg.NumRepsDx, surrogateSeed)

	res, err := mcmc.Run(mcmc.Config{
		Kernel:       o.cfg.Kernel,
		NumResults:   o.cfg.NumResults,
		BurnIn:       o.cfg.BurnIn,
		Thinning:     o.cfg.Thinning,
		TargetAccept: o.cfg.TargetAccept,
		AdaptMethod:  o.cfg.AdaptMethod,
		Seed:         chainSeed,
	}, snap.Position(), snap.StepSizes(), mcmc.Bounds{Lower: lower, Upper: upper}, target)
	if err != nil {
		if errors.Is(err, mcmc.ErrBurnInExhausted) {
			return mcmc.Result{}, &ConfigError{Reason: fmt.Sprintf("sampling at iteration %d", it), Err: err}
		}
		return mcmc.Result{}, &StageError{Stage: StageSampling, Iteration: it, Err: err}
	}
	return res, nil
}

// #endregion stages

// #region persistence

func (o *Orchestrator) record(rec IterationRecord, snap *param.Snapshot) {
	if o.rec == nil {
		return
	}
	if err := o.rec.RecordIteration(rec, snap); err != nil {
		log.Printf("[LOOP] failed to record iteration %d: %v", rec.Iteration, err)
	}
}

func (o *Orchestrator) finish(result RunResult) (RunResult, error) {
	if o.rec != nil {
		if err := o.rec.Finish(result.Status); err != nil {
			log.Printf("[LOOP] failed to record run status: %v", err)
		}
	}
	return result, nil
}

// abort records a failed terminal status so a crashed run never keeps
// reading as running, then passes the fatal error through.
func (o *Orchestrator) abort(result RunResult, err error) (RunResult, error) {
	result.Status = StatusFailed
	if o.rec != nil {
		if ferr := o.rec.Finish(StatusFailed); ferr != nil {
			log.Printf("[LOOP] failed to record run status: %v", ferr)
		}
	}
	return result, err
}

// #endregion persistence
