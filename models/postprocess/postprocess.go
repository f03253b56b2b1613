// Package postprocess - Score vector interpretation for image classifiers.
package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-freshness/models"
)

// Result is a single classification outcome.
type Result struct {
	// Index is the position of the winning score.
	Index int `json:"index"`
	// Label is the class name at Index.
	Label string `json:"label"`
	// Confidence is the winning score as a percentage.
	Confidence float64 `json:"confidence"`
}

// String renders the result as it is shown to users, e.g. "Rotten (80.0%)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%.1f%%)", r.Label, r.Confidence)
}

// ArgMax returns the index of the largest finite score. Ties resolve to the lowest index.
//
// Arguments:
//   - scores: The score vector.
//
// Returns:
//   - int: The index of the best score, or -1 when no score is finite.
func ArgMax(scores []float32) int {
	best := -1
	for i, s := range scores {
		if math32.IsNaN(s) || math32.IsInf(s, 0) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}

// Resolve selects the winning class from a score vector.
//
// Arguments:
//   - scores: The model output.
//   - labels: The label table the output is ordered by.
//
// Returns:
//   - Result: The winning label with its confidence percentage.
//   - error: An error if the vector is empty, has no finite score, or does not match the
//     label table.
func Resolve(scores []float32, labels models.LabelTable) (Result, error) {
	if len(scores) == 0 {
		return Result{}, errors.New("empty score vector")
	}
	if len(scores) != labels.Len() {
		return Result{}, errors.Errorf("score vector has %d entries for %d labels", len(scores), labels.Len())
	}

	idx := ArgMax(scores)
	if idx < 0 {
		return Result{}, errors.New("score vector has no finite value")
	}

	label, err := labels.Lookup(idx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Index:      idx,
		Label:      label,
		Confidence: float64(scores[idx] * 100),
	}, nil
}
