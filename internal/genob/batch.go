package genob

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region matrix

// Matrix is one genotype matrix in row-major layout.
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// At returns the entry at row r, column c.
func (m Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

// #endregion matrix

// #region labeled-set

// LabeledSet pairs genotype matrices with real/simulated labels
// (1 = real, 0 = simulated).
type LabeledSet struct {
	X []Matrix  `json:"x"`
	Y []float32 `json:"y"`
}

// Dataset holds the labeled training and validation splits fed to the
// discriminator each iteration.
type Dataset struct {
	Train LabeledSet `json:"train"`
	Val   LabeledSet `json:"val"`
}

// #endregion labeled-set

// #region dataset-io

// LoadDataset reads a pre-generated dataset from a JSON file, used in
// place of an initial bridge call when --data-path is given.
func LoadDataset(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(d.Train.X) != len(d.Train.Y) || len(d.Val.X) != len(d.Val.Y) {
		return Dataset{}, fmt.Errorf("dataset %s: label count does not match matrix count", path)
	}
	return d, nil
}

// #endregion dataset-io

// #region simulation-error

// SimulationError reports that a batch could not be produced for a
// parameter point, e.g. because the point is outside the simulator's
// valid domain. During sampling it causes a single-proposal rejection;
// while generating the initial dataset it is fatal.
type SimulationError struct {
	Point  []float64
	Reason string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed at %v: %s", e.Point, e.Reason)
}

// #endregion simulation-error
