// Package events defines the records that flow through the classifier service:
// the inbound push envelope, the decoded alert, and the outgoing classification.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// PushEnvelope is the JSON body of a Pub/Sub push delivery.
type PushEnvelope struct {
	Message      *PushMessage `json:"message"`
	Subscription string       `json:"subscription,omitempty"`
}

// PushMessage is the single message carried by a push delivery.
// Pub/Sub sends both camelCase and snake_case spellings of the id and publish time.
type PushMessage struct {
	Data             []byte            `json:"data"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	MessageID        string            `json:"messageId,omitempty"`
	MessageIDSnake   string            `json:"message_id,omitempty"`
	PublishTimeRaw   string            `json:"publishTime,omitempty"`
	PublishTimeSnake string            `json:"publish_time,omitempty"`

	// PublishTime is the parsed publish time, set by ParseEnvelope.
	PublishTime time.Time `json:"-"`
}

// ID returns the Pub/Sub message id, whichever spelling was sent.
func (m *PushMessage) ID() string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return m.MessageIDSnake
}

// ParseEnvelope validates a push request body and returns its message.
// Every failure wraps ErrBadRequest.
func ParseEnvelope(body []byte) (*PushMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, fmt.Errorf("%w: no Pub/Sub message received", ErrBadRequest)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid Pub/Sub message format", ErrBadRequest)
	}
	if _, ok := raw["message"]; !ok {
		return nil, fmt.Errorf("%w: invalid Pub/Sub message format", ErrBadRequest)
	}

	var env PushEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		// []byte fields are base64 in JSON, so bad data lands here too
		return nil, fmt.Errorf("%w: invalid Pub/Sub message: %v", ErrBadRequest, err)
	}
	msg := env.Message
	if msg == nil {
		return nil, fmt.Errorf("%w: invalid Pub/Sub message format", ErrBadRequest)
	}
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: Pub/Sub message has no data", ErrBadRequest)
	}
	if msg.Attributes == nil {
		msg.Attributes = map[string]string{}
	}

	publishTime := msg.PublishTimeSnake
	if publishTime == "" {
		publishTime = msg.PublishTimeRaw
	}
	ts, err := ParsePublishTime(publishTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	msg.PublishTime = ts

	return msg, nil
}

// ParsePublishTime parses an RFC3339 timestamp with or without fractional seconds.
func ParsePublishTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("publish_time is required")
	}
	// RFC3339Nano accepts a missing fraction on parse
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid publish_time %q: %w", s, err)
	}
	return t.UTC(), nil
}
