package orchestrator

import "fmt"

// #region stages

// Stage names the loop phase an error surfaced in.
type Stage string

const (
	StageDataGeneration Stage = "data generation"
	StageTraining       Stage = "training"
	StageSampling       Stage = "sampling"
)

// #endregion stages

// #region config-error

// ConfigError means the run cannot proceed with the given
// configuration. It is always fatal; nothing about it is retryable.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// #endregion config-error

// #region stage-error

// StageError wraps a collaborator failure with the stage and iteration
// it happened in, so operators can tell a broken bridge from a broken
// trainer.
type StageError struct {
	Stage     Stage
	Iteration int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed at iteration %d: %v", e.Stage, e.Iteration, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// #endregion stage-error

// #region divergence-error

// TrainingDivergenceError means the discriminator reported a validation
// accuracy that is not a real probability. Continuing would feed a
// meaningless surrogate density to the chain.
type TrainingDivergenceError struct {
	Iteration int
	Detail    string
}

func (e *TrainingDivergenceError) Error() string {
	return fmt.Sprintf("training diverged at iteration %d: %s", e.Iteration, e.Detail)
}

// #endregion divergence-error
