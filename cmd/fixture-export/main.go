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
	dbPath := flag.String("db", "", "path to mcmcgan.db")
	runID := flag.String("run", "", "run ID to export (default: most recent)")
	genobPath := flag.String("genobuilder", "", "genobuilder JSON the run was made with")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *genobPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/mcmcgan.db --genobuilder path/to/genobuilder.json --out path/to/fixture.json [--run id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *genobPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, runID, genobPath, outPath string) error {
	g, err := genob.Load(genobPath)
	if err != nil {
		return err
	}

	store, err := results.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(0)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs recorded in %s", dbPath)
	}

	var row results.RunRow
	if runID == "" {
		row = runs[0]
	} else {
		found := false
		for _, r := range runs {
			if r.RunID == runID {
				row, found = r, true
				break
			}
		}
		if !found {
			return fmt.Errorf("run %s not found", runID)
		}
	}

	accuracies, err := store.AccuracyHistory(row.RunID)
	if err != nil {
		return err
	}
	if len(accuracies) == 0 {
		return fmt.Errorf("run %s has no recorded iterations", row.RunID)
	}

	iters, err := store.Iterations(row.RunID)
	if err != nil {
		return err
	}
	sampling := 0
	for _, it := range iters {
		if it.Sampled {
			sampling++
		}
	}

	fixture := replay.Fixture{
		Description: fmt.Sprintf("Export of run %s (%d iterations, %s)", row.RunID, len(iters), row.Status),
		Genobuilder: *g,
		Config: replay.FixtureConfig{
			Kernel: row.Kernel,
			Seed:   row.Seed,
		},
		Accuracies: accuracies,
		Expected: replay.FixtureExpected{
			Status:         row.Status,
			TrainingPhases: len(accuracies),
			SamplingPhases: sampling,
		},
	}

	if err := replay.SaveFixture(outPath, fixture); err != nil {
		return err
	}

	fmt.Printf("Wrote fixture to %s (%d scripted accuracies)\n", outPath, len(accuracies))
	return nil
}

// #endregion export
