package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/cache"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
)

// Versioned is a classifier whose predictions depend on a model artifact.
type Versioned interface {
	Classifier
	Model() *Model
}

// Cached memoises another classifier's predictions per alert and model version.
type Cached struct {
	next       Versioned
	cache      *cache.Cache
	deployment string
}

// NewCached wraps next. deployment scopes keys so two modules sharing a
// Redis never read each other's predictions.
func NewCached(next Versioned, c *cache.Cache, deployment string) *Cached {
	return &Cached{next: next, cache: c, deployment: deployment}
}

// Name returns the wrapped classifier's name.
func (c *Cached) Name() string {
	return c.next.Name()
}

// Classify returns the cached prediction for t's alert, or computes and stores it.
// Cache errors are logged and never fail the call.
func (c *Cached) Classify(ctx context.Context, t *features.Table) (*Prediction, error) {
	art, err := c.next.Model().Artifact()
	if err != nil {
		return nil, err
	}
	key := c.cache.Key(c.deployment, art.Digest, t.ObjectID, t.SourceID)

	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Prediction cache read failed", "key", key, "error", err)
	} else if ok {
		return &Prediction{Probabilities: entry.Probabilities, Aux: entry.Aux, FromCache: true}, nil
	}

	pred, err := c.next.Classify(ctx, t)
	if err != nil {
		return nil, err
	}

	entry = &cache.Entry{
		Probabilities: pred.Probabilities,
		Aux:           pred.Aux,
		Digest:        art.Digest,
		CreatedMs:     time.Now().UnixMilli(),
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		slog.Warn("Prediction cache write failed", "key", key, "error", err)
	}
	return pred, nil
}
