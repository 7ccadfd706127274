package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/results"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to mcmcgan.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	paramName := flag.String("param", "", "filter summaries to one parameter")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/mcmcgan.db [--last N] [--run id] [--param name] [--json]")
		os.Exit(2)
	}

	store, err := results.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		if err := runDetailMode(store, *runID, *paramName, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(store, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string `json:"run_id"`
	Kernel     string `json:"kernel"`
	Seed       uint64 `json:"seed"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	StartedAt  string `json:"started_at"`
}

func runListMode(store *results.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		iters, err := store.Iterations(r.RunID)
		if err != nil {
			return err
		}
		rows[i] = listRow{
			RunID:      r.RunID,
			Kernel:     r.Kernel,
			Seed:       r.Seed,
			Status:     r.Status,
			Iterations: len(iters),
			StartedAt:  r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-12s  %-18s  %5s  %s\n", "Run", "Kernel", "Status", "Iters", "Started")
	fmt.Printf("%-12s+-%-12s+-%-18s+-%5s+-%s\n",
		"------------", "------------", "------------------", "-----", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-12s  %-18s  %5d  %s\n",
			shortID(r.RunID), r.Kernel, r.Status, r.Iterations, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID           string               `json:"run_id"`
	Kernel          string               `json:"kernel"`
	Seed            uint64               `json:"seed"`
	Status          string               `json:"status"`
	AccuracyHistory []float64            `json:"accuracy_history"`
	Iterations      []detailIteration    `json:"iterations"`
	Summaries       []results.SummaryRow `json:"summaries"`
}

type detailIteration struct {
	Iteration   int     `json:"iteration"`
	Accuracy    float64 `json:"accuracy"`
	AcceptRate  float64 `json:"accept_rate"`
	SimFailures int     `json:"sim_failures"`
	DurationMS  int64   `json:"duration_ms"`
}

func runDetailMode(store *results.Store, runID, paramFilter string, jsonOut bool) error {
	run, err := findRun(store, runID)
	if err != nil {
		return err
	}

	iters, err := store.Iterations(run.RunID)
	if err != nil {
		return err
	}
	accuracies, err := store.AccuracyHistory(run.RunID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:           run.RunID,
		Kernel:          run.Kernel,
		Seed:            run.Seed,
		Status:          run.Status,
		AccuracyHistory: accuracies,
	}
	for _, it := range iters {
		out.Iterations = append(out.Iterations, detailIteration{
			Iteration:   it.Iteration,
			Accuracy:    it.Accuracy,
			AcceptRate:  it.AcceptRate,
			SimFailures: it.SimFailures,
			DurationMS:  it.DurationMS,
		})
	}
	if len(iters) > 0 {
		last := iters[len(iters)-1].Iteration
		summaries, err := store.Summaries(run.RunID, last)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			if paramFilter != "" && s.Param != paramFilter {
				continue
			}
			out.Summaries = append(out.Summaries, s)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", out.RunID)
	fmt.Printf("Kernel:   %s\n", out.Kernel)
	fmt.Printf("Seed:     %d\n", out.Seed)
	fmt.Printf("Status:   %s\n", out.Status)

	fmt.Printf("\nIterations:\n")
	fmt.Printf("  %4s  %10s  %12s  %10s  %10s\n", "It", "Accuracy", "Accept Rate", "Sim Fails", "ms")
	for _, it := range out.Iterations {
		fmt.Printf("  %4d  %10.4f  %12.4f  %10d  %10d\n",
			it.Iteration, it.Accuracy, it.AcceptRate, it.SimFailures, it.DurationMS)
	}

	if len(out.Summaries) > 0 {
		fmt.Printf("\nPosterior (latest iteration):\n")
		fmt.Printf("  %-16s  %12s  %12s  %12s  %12s  %8s\n",
			"Parameter", "Center", "Spread", "2.5%", "97.5%", "ESS")
		for _, s := range out.Summaries {
			fmt.Printf("  %-16s  %12.6g  %12.6g  %12.6g  %12.6g  %8.1f\n",
				s.Param, s.Center, s.Spread, s.Low, s.High, s.ESS)
		}
	}
	return nil
}

// findRun accepts either a full run ID or the shortened prefix the
// list view prints.
func findRun(store *results.Store, runID string) (results.RunRow, error) {
	runs, err := store.ListRuns(0)
	if err != nil {
		return results.RunRow{}, err
	}
	for _, r := range runs {
		if r.RunID == runID || shortID(r.RunID) == runID {
			return r, nil
		}
	}
	return results.RunRow{}, fmt.Errorf("run %s not found", runID)
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
