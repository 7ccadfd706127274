package mcmc

import (
	"math"
	"testing"

	exprand "golang.org/x/exp/rand"
)

func TestAcceptanceRate(t *testing.T) {
	if got := AcceptanceRate(nil); got != 0 {
		t.Fatalf("empty trace: %v", got)
	}
	if got := AcceptanceRate([]bool{true, false, true, false}); got != 0.5 {
		t.Fatalf("got %v, want 0.5", got)
	}
}

func TestEffectiveSampleSizeConstantTrace(t *testing.T) {
	trace := make([]float64, 50)
	for i := range trace {
		trace[i] = 3.7
	}
	if got := EffectiveSampleSize(trace); got != 1 {
		t.Fatalf("constant trace ESS %v, want 1", got)
	}
}

func TestEffectiveSampleSizeAutocorrelation(t *testing.T) {
	rng := exprand.New(exprand.NewSource(5))
	n := 500

	iid := make([]float64, n)
	for i := range iid {
		iid[i] = rng.NormFloat64()
	}

	// Heavily autocorrelated AR(1) walk around zero.
	sticky := make([]float64, n)
	for i := 1; i < n; i++ {
		sticky[i] = 0.95*sticky[i-1] + 0.05*rng.NormFloat64()
	}

	essIID := EffectiveSampleSize(iid)
	essSticky := EffectiveSampleSize(sticky)

	if essIID > float64(n) {
		t.Fatalf("ESS %v exceeds trace length %d", essIID, n)
	}
	if essSticky >= essIID {
		t.Fatalf("autocorrelated trace ESS %v not below independent trace ESS %v", essSticky, essIID)
	}
	if essSticky <= 0 || math.IsNaN(essSticky) {
		t.Fatalf("ESS %v", essSticky)
	}
}

func TestEffectiveSampleSizeShortTrace(t *testing.T) {
	if got := EffectiveSampleSize([]float64{1, 2}); got != 2 {
		t.Fatalf("got %v, want trace length", got)
	}
}
