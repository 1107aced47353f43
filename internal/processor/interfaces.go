package processor

import (
	"context"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// AlertDecoder turns raw alert bytes into an alert record.
type AlertDecoder interface {
	Decode(data []byte) (*events.AlertRecord, error)
}

// TableWriter stores one classification row in the analytic table.
type TableWriter interface {
	// Insert writes row into table ("dataset.table"). Redelivered rows must not duplicate.
	Insert(ctx context.Context, table string, row *events.ClassificationRow) error
}

// Publisher sends an encoded classification downstream.
type Publisher interface {
	Publish(ctx context.Context, pub *events.Publication) error
}
