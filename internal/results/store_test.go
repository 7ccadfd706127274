package results

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mcmcgan.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateRun("run-1", "hmc", 42); err != nil {
		t.Fatalf("create run: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Status != "running" {
		t.Fatalf("status %q, want running", runs[0].Status)
	}
	if runs[0].Kernel != "hmc" || runs[0].Seed != 42 {
		t.Fatalf("run row %+v", runs[0])
	}
	if runs[0].StartedAt.IsZero() {
		t.Fatal("missing start time")
	}

	if err := s.FinishRun("run-1", "CONVERGED"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	runs, _ = s.ListRuns(10)
	if runs[0].Status != "CONVERGED" {
		t.Fatalf("status %q after finish", runs[0].Status)
	}
	if runs[0].FinishedAt.IsZero() {
		t.Fatal("missing finish time")
	}
}

func TestListRunsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := s.CreateRun(id, "nuts", 1); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct started_at timestamps
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-c" {
		t.Fatalf("most recent run is %s, want run-c", runs[0].RunID)
	}

	all, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want all 3", len(all))
	}
}

func TestRecordIterationRoundtrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateRun("run-1", "hmc", 7); err != nil {
		t.Fatalf("create run: %v", err)
	}

	it := IterationRow{
		RunID: "run-1", Iteration: 1, Accuracy: 0.83, Sampled: true,
		AcceptRate: 0.61, SimFailures: 2, DurationMS: 1500,
	}
	summaries := []SummaryRow{
		{RunID: "run-1", Iteration: 1, Param: "recombination_rate", Center: 2e-8, Spread: 1e-9, Low: 1.8e-8, High: 2.2e-8, ESS: 8.4},
	}
	traces := map[string][]float64{
		"recombination_rate": {1.9e-8, 2.0e-8, 2.1e-8},
	}

	if err := s.RecordIteration(it, summaries, traces); err != nil {
		t.Fatalf("record: %v", err)
	}

	iters, err := s.Iterations("run-1")
	if err != nil {
		t.Fatalf("iterations: %v", err)
	}
	if len(iters) != 1 {
		t.Fatalf("got %d iterations, want 1", len(iters))
	}
	got := iters[0]
	if got.Accuracy != 0.83 || !got.Sampled || got.AcceptRate != 0.61 || got.SimFailures != 2 || got.DurationMS != 1500 {
		t.Fatalf("iteration row %+v", got)
	}

	accs, err := s.AccuracyHistory("run-1")
	if err != nil {
		t.Fatalf("accuracy history: %v", err)
	}
	if len(accs) != 1 || accs[0] != 0.83 {
		t.Fatalf("accuracy history %v", accs)
	}

	sums, err := s.Summaries("run-1", 1)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 1 || sums[0] != summaries[0] {
		t.Fatalf("summaries %+v", sums)
	}

	trace, err := s.SampleTrace("run-1", 1, "recombination_rate")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(trace) != 3 {
		t.Fatalf("trace length %d", len(trace))
	}
	for i, v := range traces["recombination_rate"] {
		if trace[i] != v {
			t.Fatalf("trace[%d] = %v, want %v (float64 blob must be exact)", i, trace[i], v)
		}
	}
}

func TestSampledFlagSurvivesZeroAcceptance(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateRun("run-1", "random-walk", 3); err != nil {
		t.Fatalf("create run: %v", err)
	}

	// A chain can sample and accept nothing; a converged iteration
	// never samples at all. The flag must tell these apart without
	// inspecting accept rates.
	rows := []IterationRow{
		{RunID: "run-1", Iteration: 1, Accuracy: 0.9, Sampled: true, AcceptRate: 0, SimFailures: 0},
		{RunID: "run-1", Iteration: 2, Accuracy: 0.5, Sampled: false},
	}
	for _, it := range rows {
		if err := s.RecordIteration(it, nil, nil); err != nil {
			t.Fatalf("record %d: %v", it.Iteration, err)
		}
	}

	iters, err := s.Iterations("run-1")
	if err != nil {
		t.Fatalf("iterations: %v", err)
	}
	if len(iters) != 2 {
		t.Fatalf("got %d iterations, want 2", len(iters))
	}
	if !iters[0].Sampled {
		t.Fatal("iteration 1 lost its sampled flag")
	}
	if iters[1].Sampled {
		t.Fatal("iteration 2 must not be marked sampled")
	}
}

func TestSampleTraceMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SampleTrace("no-run", 1, "rate"); err == nil {
		t.Fatal("expected error for unknown trace")
	}
}
