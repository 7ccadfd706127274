package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/mcmc"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/monitor"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/results"
	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/sidecar"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	kernelName := flag.String("kernel-name", "hmc", "MCMC kernel: hmc, nuts, or random-walk")
	dataPath := flag.String("data-path", "", "pre-generated training dataset JSON (skips initial simulation)")
	modelPath := flag.String("discriminator-model", "", "pretrained discriminator to load before the first iteration")
	epochs := flag.Int("epochs", 5, "training epochs per iteration")
	numSamples := flag.Int("num-mcmc-samples", 10, "MCMC samples retained per iteration")
	burnIn := flag.Int("num-mcmc-burnin", 10, "burn-in steps discarded per chain")
	thinning := flag.Int("thinning", 1, "keep every Nth post-burn-in sample")
	maxIters := flag.Int("max-num-iters", 3, "iteration budget (0 = no-op)")
	numRepsDx := flag.Int("num-reps-Dx", 32, "simulation replicates per density evaluation")
	numRepsTraining := flag.Int("num-reps-training", 1000, "replicates per training-data refresh")
	targetAccept := flag.Float64("target-acc-rate", 0.65, "step-size adaptation target acceptance rate")
	learningRate := flag.Float64("learning-rate", 2e-4, "discriminator learning rate")
	policy := flag.String("policy", string(monitor.PolicyThreshold), "convergence policy: accuracy-threshold or fixed-iterations")
	threshold := flag.Float64("threshold", 0.55, "validation-accuracy convergence threshold")
	seed := flag.Uint64("seed", 0, "top-level seed; all randomness derives from it")
	parallelism := flag.Int("parallelism", 0, "simulation worker count (0 = all cores)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mcmcgan [flags] path/to/genobuilder.json")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), runOptions{
		kernel:          *kernelName,
		dataPath:        *dataPath,
		modelPath:       *modelPath,
		epochs:          *epochs,
		numSamples:      *numSamples,
		burnIn:          *burnIn,
		thinning:        *thinning,
		maxIters:        *maxIters,
		numRepsDx:       *numRepsDx,
		numRepsTraining: *numRepsTraining,
		targetAccept:    *targetAccept,
		learningRate:    *learningRate,
		policy:          *policy,
		threshold:       *threshold,
		seed:            *seed,
		parallelism:     *parallelism,
	}); err != nil {
		var cfgErr *orchestrator.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run

type runOptions struct {
	kernel          string
	dataPath        string
	modelPath       string
	epochs          int
	numSamples      int
	burnIn          int
	thinning        int
	maxIters        int
	numRepsDx       int
	numRepsTraining int
	targetAccept    float64
	learningRate    float64
	policy          string
	threshold       float64
	seed            uint64
	parallelism     int
}

func run(genobPath string, opts runOptions) error {
	g, err := genob.Load(genobPath)
	if err != nil {
		return err
	}
	snap, err := param.FromGenobuilder(g)
	if err != nil {
		return err
	}

	kernel, err := mcmc.ParseKernel(opts.kernel)
	if err != nil {
		return &orchestrator.ConfigError{Reason: "kernel", Err: err}
	}

	cfg := orchestrator.Config{
		Kernel:          kernel,
		MaxIterations:   opts.maxIters,
		Epochs:          opts.epochs,
		LearningRate:    opts.learningRate,
		NumResults:      opts.numSamples,
		BurnIn:          opts.burnIn,
		Thinning:        opts.thinning,
		NumRepsDx:       opts.numRepsDx,
		NumRepsTraining: opts.numRepsTraining,
		TargetAccept:    opts.targetAccept,
		AdaptMethod:     mcmc.AdaptDualAveraging,
		Monitor: monitor.Config{
			Policy:    monitor.Policy(opts.policy),
			Threshold: opts.threshold,
		},
		Seed: opts.seed,
	}

	// The sidecar hosts both the simulator and the discriminator.
	addr := envOr("SIDECAR_ADDR", "localhost:50051")
	client, err := sidecar.New(addr, opts.parallelism)
	if err != nil {
		return fmt.Errorf("connect sidecar %s: %w", addr, err)
	}
	defer client.Close()

	if opts.modelPath != "" {
		if err := client.LoadModel(opts.modelPath); err != nil {
			return fmt.Errorf("load discriminator model: %w", err)
		}
		log.Printf("[MAIN] loaded pretrained discriminator from %s", opts.modelPath)
	}

	var initialData *genob.Dataset
	if opts.dataPath != "" {
		d, err := genob.LoadDataset(opts.dataPath)
		if err != nil {
			return err
		}
		initialData = &d
		log.Printf("[MAIN] loaded pre-generated training data from %s", opts.dataPath)
	}

	store, err := results.Open(envOr("MCMCGAN_DB", "mcmcgan.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := orchestrator.NewStoreRecorder(store, cfg, snap)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, client, client, rec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := orch.Run(ctx, snap, initialData)
	if err != nil {
		return err
	}

	printResult(res)
	return nil
}

// #endregion run

// #region output

func printResult(res orchestrator.RunResult) {
	fmt.Printf("run %s finished: %s after %d iteration(s)\n",
		res.RunID, res.Status, len(res.Iterations))

	if len(res.AccuracyHistory) > 0 {
		fmt.Printf("validation accuracy:")
		for _, a := range res.AccuracyHistory {
			fmt.Printf(" %.4f", a)
		}
		fmt.Println()
	}

	summaries := res.LastSummaries()
	if len(summaries) == 0 {
		fmt.Println("no posterior estimates (no sampling phase ran)")
		return
	}

	fmt.Printf("\n%-16s  %12s  %12s  %12s  %12s\n", "Parameter", "Estimate", "Spread", "2.5%", "97.5%")
	for _, s := range summaries {
		fmt.Printf("%-16s  %12.6g  %12.6g  %12.6g  %12.6g\n", s.Name, s.Center, s.Spread, s.Low, s.High)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
