package orchestrator

// #region imports
import (
	"fmt"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/results"
)

// #endregion

// #region store-recorder

// StoreRecorder persists iteration records into a results store and the
// per-iteration parameter snapshots into the snapshot store sharing the
// same database file.
type StoreRecorder struct {
	runID       string
	store       *results.Store
	snaps       *param.SnapshotStore
	lastVersion string
}

// NewStoreRecorder registers a new run and saves the initial snapshot
// as iteration 0.
func NewStoreRecorder(store *results.Store, cfg Config, initial *param.Snapshot) (*StoreRecorder, error) {
	snaps, err := param.NewSnapshotStore(store.DB())
	if err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	if err := store.CreateRun(runID, string(cfg.Kernel), cfg.Seed); err != nil {
		return nil, err
	}
	version, err := snaps.Save(runID, 0, "", initial)
	if err != nil {
		return nil, fmt.Errorf("save initial snapshot: %w", err)
	}
	return &StoreRecorder{runID: runID, store: store, snaps: snaps, lastVersion: version}, nil
}

// RunID implements Recorder.
func (r *StoreRecorder) RunID() string { return r.runID }

// RecordIteration implements Recorder.
func (r *StoreRecorder) RecordIteration(rec IterationRecord, snap *param.Snapshot) error {
	it := results.IterationRow{
		RunID:       r.runID,
		Iteration:   rec.Iteration,
		Accuracy:    rec.Accuracy,
		Sampled:     rec.Sampled,
		AcceptRate:  rec.AcceptRate,
		SimFailures: rec.SimFailures,
		DurationMS:  rec.Duration.Milliseconds(),
	}

	var rows []results.SummaryRow
	for _, s := range rec.Summaries {
		rows = append(rows, results.SummaryRow{
			RunID:     r.runID,
			Iteration: rec.Iteration,
			Param:     s.Name,
			Center:    s.Center,
			Spread:    s.Spread,
			Low:       s.Low,
			High:      s.High,
			ESS:       rec.ESS[s.Name],
		})
	}

	if err := r.store.RecordIteration(it, rows, rec.Traces); err != nil {
		return err
	}

	version, err := r.snaps.Save(r.runID, rec.Iteration, r.lastVersion, snap)
	if err != nil {
		return err
	}
	r.lastVersion = version
	return nil
}

// Finish implements Recorder.
func (r *StoreRecorder) Finish(status Status) error {
	return r.store.FinishRun(r.runID, string(status))
}

// #endregion store-recorder
