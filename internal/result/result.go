// Package result turns raw classifier output into a classification result.
package result

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// ClassificationResult is the classifier's verdict for one alert.
type ClassificationResult struct {
	AlertID        int64
	ObjectID       string
	SourceID       int64
	Probabilities  []float64
	PredictedClass int
	Timestamp      time.Time
}

// ArgMax returns the index of the largest probability. Ties go to the
// lowest index. It returns -1 for an empty slice.
func ArgMax(p []float64) int {
	if len(p) == 0 {
		return -1
	}
	return floats.MaxIdx(p)
}

// New validates probs and attaches the alert's identifiers.
// Invalid probabilities are reported as ErrClassificationUnavailable.
func New(rec *events.AlertRecord, probs []float64, now time.Time) (*ClassificationResult, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("%w: classifier returned no probabilities", events.ErrClassificationUnavailable)
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %d is %v", events.ErrClassificationUnavailable, i, p)
		}
	}

	return &ClassificationResult{
		AlertID:        rec.AlertID,
		ObjectID:       rec.ObjectID,
		SourceID:       rec.SourceID,
		Probabilities:  append([]float64(nil), probs...),
		PredictedClass: ArgMax(probs),
		Timestamp:      now.UTC(),
	}, nil
}
