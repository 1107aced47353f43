package handlers

import (
	"context"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
)

// AlertProcessor runs one push message through the pipeline.
type AlertProcessor interface {
	Process(ctx context.Context, msg *events.PushMessage) (*processor.Outcome, error)
}

var _ AlertProcessor = (*processor.Processor)(nil)
