package param

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region schema

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS param_snapshots (
	version_id   TEXT PRIMARY KEY,
	parent_id    TEXT,
	run_id       TEXT NOT NULL,
	iteration    INTEGER NOT NULL,
	params_json  TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES param_snapshots(version_id)
);
`

const snapshotIndex = `
CREATE INDEX IF NOT EXISTS idx_param_snapshots_run
ON param_snapshots(run_id, iteration);
`

// #endregion schema

// #region store

// SnapshotStore persists the per-iteration parameter snapshots so a run's
// full estimate history can be inspected and replayed.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore initializes the param_snapshots table.
func NewSnapshotStore(db *sql.DB) (*SnapshotStore, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("migrate param_snapshots: %w", err)
	}
	if _, err := db.Exec(snapshotIndex); err != nil {
		return nil, fmt.Errorf("index param_snapshots: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// #endregion store

// #region save

// Save persists a snapshot and returns its version ID. parentID is the
// previous iteration's version, or empty for the initial snapshot.
func (st *SnapshotStore) Save(runID string, iteration int, parentID string, snap *Snapshot) (string, error) {
	id := uuid.New().String()
	raw, err := json.Marshal(snap.Params())
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var parentPtr interface{}
	if parentID != "" {
		parentPtr = parentID
	}

	_, err = st.db.Exec(
		`INSERT INTO param_snapshots (version_id, parent_id, run_id, iteration, params_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, parentPtr, runID, iteration, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// #endregion save

// #region get

// Get retrieves a snapshot by version ID.
func (st *SnapshotStore) Get(versionID string) (*Snapshot, error) {
	var raw string
	err := st.db.QueryRow(
		`SELECT params_json FROM param_snapshots WHERE version_id = ?`, versionID,
	).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", versionID, err)
	}
	var params []Parameter
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", versionID, err)
	}
	return New(params)
}

// Latest retrieves the most recent snapshot for a run, or sql.ErrNoRows
// wrapped if the run has none.
func (st *SnapshotStore) Latest(runID string) (*Snapshot, int, error) {
	var raw string
	var iteration int
	err := st.db.QueryRow(
		`SELECT params_json, iteration FROM param_snapshots
		 WHERE run_id = ? ORDER BY iteration DESC LIMIT 1`, runID,
	).Scan(&raw, &iteration)
	if err != nil {
		return nil, 0, fmt.Errorf("latest snapshot for run %s: %w", runID, err)
	}
	var params []Parameter
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, 0, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	snap, err := New(params)
	return snap, iteration, err
}

// #endregion get
