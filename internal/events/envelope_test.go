package events

import (
	"errors"
	"testing"
	"time"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
			errMsg:  "bad request: no Pub/Sub message received",
		},
		{
			name:    "empty object",
			body:    "{}",
			wantErr: true,
			errMsg:  "bad request: no Pub/Sub message received",
		},
		{
			name:    "json null",
			body:    "null",
			wantErr: true,
			errMsg:  "bad request: no Pub/Sub message received",
		},
		{
			name:    "not an object",
			body:    `["message"]`,
			wantErr: true,
			errMsg:  "bad request: invalid Pub/Sub message format",
		},
		{
			name:    "missing message key",
			body:    `{"subscription":"projects/p/subscriptions/s"}`,
			wantErr: true,
			errMsg:  "bad request: invalid Pub/Sub message format",
		},
		{
			name:    "null message",
			body:    `{"message":null}`,
			wantErr: true,
			errMsg:  "bad request: invalid Pub/Sub message format",
		},
		{
			name:    "missing data",
			body:    `{"message":{"attributes":{},"publish_time":"2023-01-02T03:04:05Z"}}`,
			wantErr: true,
			errMsg:  "bad request: Pub/Sub message has no data",
		},
		{
			name:    "invalid base64",
			body:    `{"message":{"data":"!!!","publish_time":"2023-01-02T03:04:05Z"}}`,
			wantErr: true,
		},
		{
			name:    "missing publish time",
			body:    `{"message":{"data":"aGVsbG8="}}`,
			wantErr: true,
			errMsg:  "bad request: publish_time is required",
		},
		{
			name:    "bad publish time",
			body:    `{"message":{"data":"aGVsbG8=","publish_time":"yesterday"}}`,
			wantErr: true,
		},
		{
			name:    "valid with fractional seconds",
			body:    `{"message":{"data":"aGVsbG8=","attributes":{"kafka.timestamp":"1670000000000"},"message_id":"42","publish_time":"2023-01-02T03:04:05.123456Z"}}`,
			wantErr: false,
		},
		{
			name:    "valid camel case without fraction",
			body:    `{"message":{"data":"aGVsbG8=","messageId":"42","publishTime":"2023-01-02T03:04:05Z"}}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseEnvelope([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEnvelope() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("ParseEnvelope() error = %v, want ErrBadRequest", err)
				}
				if tt.errMsg != "" && err.Error() != tt.errMsg {
					t.Errorf("ParseEnvelope() error = %q, want %q", err.Error(), tt.errMsg)
				}
				return
			}
			if string(msg.Data) != "hello" {
				t.Errorf("Data = %q, want %q", msg.Data, "hello")
			}
			if msg.ID() != "42" {
				t.Errorf("ID() = %q, want 42", msg.ID())
			}
			if msg.Attributes == nil {
				t.Error("Attributes should never be nil")
			}
			if msg.PublishTime.Year() != 2023 || msg.PublishTime.Second() != 5 {
				t.Errorf("PublishTime = %v, want 2023-01-02T03:04:05Z", msg.PublishTime)
			}
		})
	}
}

func TestParsePublishTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"no fraction", "2022-11-30T18:00:00Z", time.Date(2022, 11, 30, 18, 0, 0, 0, time.UTC)},
		{"micro fraction", "2022-11-30T18:00:00.250000Z", time.Date(2022, 11, 30, 18, 0, 0, 250000000, time.UTC)},
		{"offset", "2022-11-30T19:00:00+01:00", time.Date(2022, 11, 30, 18, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePublishTime(tt.in)
			if err != nil {
				t.Fatalf("ParsePublishTime(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParsePublishTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParsePublishTime(%q) location = %v, want UTC", tt.in, got.Location())
			}
		})
	}
}
