package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// #endregion

// #region fixture-types

// Fixture is the top-level JSON structure for a replay run: a
// genobuilder, loop configuration, scripted collaborator behavior, and
// the expected terminal outcome.
type Fixture struct {
	Description string            `json:"description"`
	Genobuilder genob.Genobuilder `json:"genobuilder"`
	Config      FixtureConfig     `json:"config"`

	// Accuracies scripts the validation accuracy the trainer reports
	// per Fit call; the last value repeats if the run goes longer.
	Accuracies []float64 `json:"accuracies"`

	// FailSimulation makes every density-evaluation Simulate call fail,
	// reproducing a bridge whose simulator rejects all proposals.
	FailSimulation bool `json:"fail_simulation"`

	Expected FixtureExpected `json:"expected"`
}

// FixtureConfig mirrors the loop configuration with JSON tags. Zero
// fields fall back to the controller defaults.
type FixtureConfig struct {
	Kernel          string  `json:"kernel"`
	MaxIterations   int     `json:"max_iterations"`
	Epochs          int     `json:"epochs"`
	NumResults      int     `json:"num_results"`
	BurnIn          int     `json:"burn_in"`
	Thinning        int     `json:"thinning"`
	NumRepsDx       int     `json:"num_reps_dx"`
	NumRepsTraining int     `json:"num_reps_training"`
	TargetAccept    float64 `json:"target_acc_rate"`
	Policy          string  `json:"policy"`
	Threshold       float64 `json:"threshold"`
	Seed            uint64  `json:"seed"`
}

// FixtureExpected is the outcome the fixture asserts.
type FixtureExpected struct {
	Status         string `json:"status"`
	TrainingPhases int    `json:"training_phases"`
	SamplingPhases int    `json:"sampling_phases"`
	FatalError     bool   `json:"fatal_error"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and validates a fixture JSON file.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Genobuilder.Validate(); err != nil {
		return Fixture{}, fmt.Errorf("fixture %s: %w", path, err)
	}
	if len(f.Accuracies) == 0 {
		return Fixture{}, fmt.Errorf("fixture %s: no scripted accuracies", path)
	}
	return f, nil
}

// SaveFixture writes a fixture as indented JSON.
func SaveFixture(path string, f Fixture) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion load
