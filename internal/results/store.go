package results

// #region imports
import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	kernel       TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS iterations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	accuracy      REAL NOT NULL,
	sampled       INTEGER NOT NULL DEFAULT 0,
	accept_rate   REAL NOT NULL,
	sim_failures  INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS summaries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	iteration  INTEGER NOT NULL,
	param      TEXT NOT NULL,
	center     REAL NOT NULL,
	spread     REAL NOT NULL,
	low        REAL NOT NULL,
	high       REAL NOT NULL,
	ess        REAL NOT NULL DEFAULT 0,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS sample_traces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	iteration  INTEGER NOT NULL,
	param      TEXT NOT NULL,
	trace      BLOB NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id, iteration);
CREATE INDEX IF NOT EXISTS idx_summaries_run ON summaries(run_id, iteration);
CREATE INDEX IF NOT EXISTS idx_traces_run ON sample_traces(run_id, iteration);
`

// #endregion schema

// #region types

// RunRow is one row of the runs table.
type RunRow struct {
	RunID      string
	Kernel     string
	Seed       uint64
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// IterationRow is one recorded iteration.
type IterationRow struct {
	RunID       string
	Iteration   int
	Accuracy    float64
	Sampled     bool
	AcceptRate  float64
	SimFailures int
	DurationMS  int64
}

// SummaryRow is one per-parameter posterior summary.
type SummaryRow struct {
	RunID     string
	Iteration int
	Param     string
	Center    float64
	Spread    float64
	Low       float64
	High      float64
	ESS       float64
}

// #endregion types

// #region store

// Store persists runs, iteration records, posterior summaries, and raw
// sample traces. External plotting consumes these; the controller
// renders nothing.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a results database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate results db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the connection for stores that share the file
// (e.g. the parameter snapshot store).
func (s *Store) DB() *sql.DB { return s.db }

// #endregion store

// #region runs

// CreateRun inserts a new run in 'running' status.
func (s *Store) CreateRun(runID, kernel string, seed uint64) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, kernel, seed, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		runID, kernel, int64(seed), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(runID, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs. A non-positive limit returns
// all of them.
func (s *Store) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT run_id, kernel, seed, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var seed int64
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.RunID, &r.Kernel, &seed, &r.Status, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Seed = uint64(seed)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion runs

// #region iterations

// RecordIteration persists one iteration with its summaries and raw
// per-parameter sample traces in a single transaction.
func (s *Store) RecordIteration(it IterationRow, summaries []SummaryRow, traces map[string][]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO iterations (run_id, iteration, accuracy, sampled, accept_rate, sim_failures, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.RunID, it.Iteration, it.Accuracy, it.Sampled, it.AcceptRate, it.SimFailures, it.DurationMS,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}

	for _, sum := range summaries {
		_, err = tx.Exec(
			`INSERT INTO summaries (run_id, iteration, param, center, spread, low, high, ess)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, sum.Iteration, sum.Param, sum.Center, sum.Spread, sum.Low, sum.High, sum.ESS,
		)
		if err != nil {
			return fmt.Errorf("insert summary %s: %w", sum.Param, err)
		}
	}

	for name, trace := range traces {
		_, err = tx.Exec(
			`INSERT INTO sample_traces (run_id, iteration, param, trace) VALUES (?, ?, ?, ?)`,
			it.RunID, it.Iteration, name, encodeTrace(trace),
		)
		if err != nil {
			return fmt.Errorf("insert trace %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// AccuracyHistory returns per-iteration validation accuracies in order.
func (s *Store) AccuracyHistory(runID string) ([]float64, error) {
	rows, err := s.db.Query(
		`SELECT accuracy FROM iterations WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("accuracy history: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan accuracy: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Iterations returns the recorded iterations of a run in order.
func (s *Store) Iterations(runID string) ([]IterationRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, accuracy, sampled, accept_rate, sim_failures, duration_ms
		 FROM iterations WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("iterations: %w", err)
	}
	defer rows.Close()

	var out []IterationRow
	for rows.Next() {
		var r IterationRow
		if err := rows.Scan(&r.RunID, &r.Iteration, &r.Accuracy, &r.Sampled, &r.AcceptRate, &r.SimFailures, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summaries returns the posterior summaries recorded at one iteration.
func (s *Store) Summaries(runID string, iteration int) ([]SummaryRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, param, center, spread, low, high, ess
		 FROM summaries WHERE run_id = ? AND iteration = ? ORDER BY id`, runID, iteration,
	)
	if err != nil {
		return nil, fmt.Errorf("summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.RunID, &r.Iteration, &r.Param, &r.Center, &r.Spread, &r.Low, &r.High, &r.ESS); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SampleTrace returns a parameter's raw sample array for one iteration.
func (s *Store) SampleTrace(runID string, iteration int, param string) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT trace FROM sample_traces WHERE run_id = ? AND iteration = ? AND param = ?`,
		runID, iteration, param,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("sample trace %s/%d/%s: %w", runID, iteration, param, err)
	}
	return decodeTrace(blob), nil
}

// #endregion iterations

// #region trace-encoding

func encodeTrace(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeTrace(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion trace-encoding
