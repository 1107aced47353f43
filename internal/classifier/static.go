package classifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
)

// Static returns the same probabilities for every table.
type Static struct {
	name  string
	probs []float64
	calls atomic.Int64
}

// NewStatic returns a Static classifier. probs must be valid probabilities.
func NewStatic(name string, probs []float64) (*Static, error) {
	if err := checkProbabilities(probs, len(probs)); err != nil {
		return nil, err
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("static classifier needs at least one probability")
	}
	return &Static{name: name, probs: append([]float64(nil), probs...)}, nil
}

// Name returns the configured name.
func (s *Static) Name() string {
	return s.name
}

// Calls reports how many tables were classified.
func (s *Static) Calls() int64 {
	return s.calls.Load()
}

// Classify returns the fixed probabilities.
func (s *Static) Classify(_ context.Context, t *features.Table) (*Prediction, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("%w: empty light curve", events.ErrClassificationUnavailable)
	}
	s.calls.Add(1)
	return &Prediction{Probabilities: append([]float64(nil), s.probs...)}, nil
}
