package orchestrator

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/param"
)

func inferableParams() []param.Parameter {
	return []param.Parameter{
		{Name: "recombination_rate", Inferable: true, Lower: 0, Upper: 100, Estimate: 50, StepSize: 1},
		{Name: "mutation_rate", Inferable: true, Lower: 0, Upper: 100, Estimate: 50, StepSize: 1},
	}
}

func TestSummarizeMedianAndInterval(t *testing.T) {
	// First coordinate counts 1..40, second is constant.
	samples := make([][]float64, 40)
	for i := range samples {
		samples[i] = []float64{float64(i + 1), 7}
	}

	summaries, traces, ess, err := Summarize(inferableParams(), samples)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	first := summaries[0]
	if first.Name != "recombination_rate" {
		t.Fatalf("order changed: %s", first.Name)
	}
	if first.Center < 19 || first.Center > 22 {
		t.Fatalf("median %v, want near 20.5", first.Center)
	}
	if first.Low >= first.Center || first.High <= first.Center {
		t.Fatalf("interval [%v, %v] does not bracket the center %v", first.Low, first.High, first.Center)
	}
	if first.Spread <= 0 {
		t.Fatalf("spread %v", first.Spread)
	}

	// degenerate second coordinate: interval still non-empty, spread zero
	second := summaries[1]
	if second.Center != 7 {
		t.Fatalf("constant trace center %v, want 7", second.Center)
	}
	if !(second.Low < second.High) {
		t.Fatalf("degenerate interval [%v, %v] must be widened", second.Low, second.High)
	}
	if second.Spread != 0 {
		t.Fatalf("constant trace spread %v, want 0", second.Spread)
	}

	if len(traces["recombination_rate"]) != 40 {
		t.Fatalf("trace length %d", len(traces["recombination_rate"]))
	}
	if ess["mutation_rate"] != 1 {
		t.Fatalf("constant trace ESS %v, want 1", ess["mutation_rate"])
	}
}

func TestSummarizeRejectsBadSamples(t *testing.T) {
	if _, _, _, err := Summarize(inferableParams(), nil); err == nil {
		t.Fatal("expected error for empty sample set")
	}
	if _, _, _, err := Summarize(inferableParams(), [][]float64{{1}}); err == nil {
		t.Fatal("expected error for arity mismatch")
	}
	if _, _, _, err := Summarize(inferableParams(), [][]float64{{1, math.NaN()}}); err == nil {
		t.Fatal("expected error for NaN sample")
	}
}
