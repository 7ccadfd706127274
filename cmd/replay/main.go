package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/replay"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/results"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to mcmcgan.db (DB mode)")
	runID := flag.String("run", "", "run ID to replay (DB mode; default: most recent)")
	genobPath := flag.String("genobuilder", "", "genobuilder JSON (required in DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/mcmcgan.db --genobuilder path/to/genobuilder.json [--run id]")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *runID, *genobPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	got, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return printComparison(f.Description, f.Expected, got)
}

// #endregion fixture-mode

// #region db-mode

// runDBMode rebuilds a scripted fixture from a recorded run (its
// kernel, seed, and per-iteration validation accuracies) and replays it
// in-memory against the given genobuilder.
func runDBMode(dbPath, runID, genobPath string) int {
	if genobPath == "" {
		fmt.Fprintln(os.Stderr, "DB mode requires --genobuilder")
		return 2
	}

	g, err := genob.Load(genobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load genobuilder: %v\n", err)
		return 2
	}

	store, err := results.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	run, err := findRun(store, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	accuracies, err := store.AccuracyHistory(run.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accuracy history: %v\n", err)
		return 2
	}
	if len(accuracies) == 0 {
		fmt.Fprintf(os.Stderr, "run %s has no recorded iterations\n", run.RunID)
		return 2
	}

	iters, err := store.Iterations(run.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterations: %v\n", err)
		return 2
	}
	sampling := 0
	for _, it := range iters {
		if it.Sampled {
			sampling++
		}
	}

	f := replay.Fixture{
		Description: fmt.Sprintf("DB export of run %s", run.RunID),
		Genobuilder: *g,
		Config: replay.FixtureConfig{
			Kernel: run.Kernel,
			Seed:   run.Seed,
		},
		Accuracies: accuracies,
		Expected: replay.FixtureExpected{
			Status:         run.Status,
			TrainingPhases: len(accuracies),
			SamplingPhases: sampling,
		},
	}

	got, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return printComparison(f.Description, f.Expected, got)
}

// findRun resolves a run ID, defaulting to the most recent run.
func findRun(store *results.Store, runID string) (results.RunRow, error) {
	runs, err := store.ListRuns(50)
	if err != nil {
		return results.RunRow{}, fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		return results.RunRow{}, fmt.Errorf("no runs recorded")
	}
	if runID == "" {
		return runs[0], nil
	}
	for _, r := range runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return results.RunRow{}, fmt.Errorf("run %s not found", runID)
}

// #endregion db-mode

// #region output

// printComparison diffs the replayed outcome against the expectation
// and returns the process exit code.
func printComparison(desc string, want replay.FixtureExpected, got replay.Outcome) int {
	fmt.Printf("replay: %s\n\n", desc)
	fmt.Printf("%-18s| %-18s| %-18s| %s\n", "Field", "Expected", "Replayed", "Match")
	fmt.Printf("%-18s+%-19s+%-19s+%s\n",
		"------------------", "-------------------", "-------------------", "------")

	rows := []struct {
		name     string
		exp, act string
	}{
		{"status", want.Status, got.Status},
		{"training phases", fmt.Sprint(want.TrainingPhases), fmt.Sprint(got.TrainingPhases)},
		{"sampling phases", fmt.Sprint(want.SamplingPhases), fmt.Sprint(got.SamplingPhases)},
		{"fatal error", fmt.Sprint(want.FatalError), fmt.Sprint(got.FatalError)},
	}

	diverge := 0
	for _, r := range rows {
		match := "OK"
		if r.exp != r.act {
			match = "DIFF"
			diverge++
		}
		fmt.Printf("%-18s| %-18s| %-18s| %s\n", r.name, r.exp, r.act, match)
	}

	if got.ErrMessage != "" {
		fmt.Printf("\nreplayed error: %s\n", got.ErrMessage)
	}
	fmt.Printf("\nSummary: %d field(s) diverge\n", diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
