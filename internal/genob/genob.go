package genob

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region param-def

// ParamDef declares one demographic-model parameter in the
// simulation configuration.
type ParamDef struct {
	Name         string  `json:"name"`
	Lower        float64 `json:"lower"`
	Upper        float64 `json:"upper"`
	InitialGuess float64 `json:"initial_guess"`
	Inferable    bool    `json:"inferable"`

	// Truth is the hidden true value used by the synthetic generator
	// when producing "real" batches for fixtures and tests. Ignored by
	// the sidecar bridge, which reads empirical data instead.
	Truth float64 `json:"truth,omitempty"`
}

// #endregion param-def

// #region genobuilder

// Genobuilder is the simulation-configuration object: genotype-matrix
// dimensions plus the declared parameter set. The declaration order of
// Params is the fixed ordering used for chain position indexing.
type Genobuilder struct {
	NumSamples int        `json:"num_samples"` // haplotype rows per matrix
	FixedDim   int        `json:"fixed_dim"`   // SNP columns per matrix
	Params     []ParamDef `json:"params"`
}

// #endregion genobuilder

// #region load

// Load reads and validates a genobuilder JSON file.
func Load(path string) (*Genobuilder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genobuilder %s: %w", path, err)
	}
	var g Genobuilder
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse genobuilder %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genobuilder %s: %w", path, err)
	}
	return &g, nil
}

// Save writes the genobuilder as indented JSON.
func (g *Genobuilder) Save(path string) error {
	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genobuilder: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write genobuilder %s: %w", path, err)
	}
	return nil
}

// #endregion load

// #region validate

// Validate checks matrix dimensions and parameter declarations.
func (g *Genobuilder) Validate() error {
	if g.NumSamples <= 0 {
		return fmt.Errorf("num_samples must be positive, got %d", g.NumSamples)
	}
	if g.FixedDim <= 0 {
		return fmt.Errorf("fixed_dim must be positive, got %d", g.FixedDim)
	}
	if len(g.Params) == 0 {
		return fmt.Errorf("no parameters declared")
	}
	seen := make(map[string]bool, len(g.Params))
	for _, p := range g.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if !(p.Lower < p.Upper) {
			return fmt.Errorf("parameter %q: lower %v must be below upper %v", p.Name, p.Lower, p.Upper)
		}
		if p.InitialGuess < p.Lower || p.InitialGuess > p.Upper {
			return fmt.Errorf("parameter %q: initial guess %v outside [%v, %v]", p.Name, p.InitialGuess, p.Lower, p.Upper)
		}
	}
	return nil
}

// #endregion validate

// #region inferable

// Inferable returns the inferable parameters in declaration order.
// This ordering is fixed for the lifetime of a run.
func (g *Genobuilder) Inferable() []ParamDef {
	var out []ParamDef
	for _, p := range g.Params {
		if p.Inferable {
			out = append(out, p)
		}
	}
	return out
}

// #endregion inferable
