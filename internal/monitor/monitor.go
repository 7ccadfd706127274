package monitor

// #region imports
import (
	"fmt"
)

// #endregion

// #region policy

// Policy selects the stopping rule.
type Policy string

const (
	// PolicyThreshold declares convergence when the discriminator's
	// validation accuracy falls below the threshold: the classifier can
	// no longer tell real data from data simulated at the inferred
	// parameters. This is the strict default.
	PolicyThreshold Policy = "accuracy-threshold"

	// PolicyFixedIters runs exactly max iterations with no early exit.
	PolicyFixedIters Policy = "fixed-iterations"
)

// Config configures the convergence monitor.
type Config struct {
	Policy    Policy
	Threshold float64
}

// DefaultConfig returns the strict threshold policy at 0.55.
func DefaultConfig() Config {
	return Config{Policy: PolicyThreshold, Threshold: 0.55}
}

// #endregion policy

// #region decision

// Decision records the convergence check outcome with its reason.
type Decision struct {
	Converged bool
	Reason    string
}

// #endregion decision

// #region monitor

// Monitor applies the configured stopping rule at iteration boundaries.
type Monitor struct {
	config Config
}

// New validates the config and returns a monitor.
func New(config Config) (*Monitor, error) {
	switch config.Policy {
	case PolicyThreshold:
		if config.Threshold <= 0 || config.Threshold >= 1 {
			return nil, fmt.Errorf("threshold must be in (0, 1), got %v", config.Threshold)
		}
	case PolicyFixedIters:
		// threshold unused
	default:
		return nil, fmt.Errorf("unsupported convergence policy %q", config.Policy)
	}
	return &Monitor{config: config}, nil
}

// Policy returns the active stopping rule.
func (m *Monitor) Policy() Policy { return m.config.Policy }

// Check evaluates the stopping rule against the current iteration's
// validation accuracy. Accuracy outside [0, 1] is a contract violation
// by the training interface.
func (m *Monitor) Check(iteration int, accuracy float64) (Decision, error) {
	if accuracy < 0 || accuracy > 1 {
		return Decision{}, fmt.Errorf("iteration %d: validation accuracy %v outside [0, 1]", iteration, accuracy)
	}

	switch m.config.Policy {
	case PolicyFixedIters:
		return Decision{
			Converged: false,
			Reason:    "fixed-iteration policy: no early exit",
		}, nil
	default:
		if accuracy < m.config.Threshold {
			return Decision{
				Converged: true,
				Reason:    fmt.Sprintf("accuracy %.4f below threshold %.4f", accuracy, m.config.Threshold),
			}, nil
		}
		return Decision{
			Converged: false,
			Reason:    fmt.Sprintf("accuracy %.4f at or above threshold %.4f", accuracy, m.config.Threshold),
		}, nil
	}
}

// #endregion monitor
