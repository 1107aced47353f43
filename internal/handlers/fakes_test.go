package handlers

import (
	"context"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
)

// FakeProcessor is a test fake for AlertProcessor.
type FakeProcessor struct {
	Messages   []*events.PushMessage
	ProcessErr error
}

func (f *FakeProcessor) Process(_ context.Context, msg *events.PushMessage) (*processor.Outcome, error) {
	f.Messages = append(f.Messages, msg)
	if f.ProcessErr != nil {
		return nil, f.ProcessErr
	}
	return &processor.Outcome{}, nil
}
