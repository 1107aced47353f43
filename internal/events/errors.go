package events

import "errors"

// Error classes for a single push request. Callers branch with errors.Is;
// producers wrap with fmt.Errorf("...: %w", Err...).
var (
	// ErrBadRequest means the push envelope or the alert payload is malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrSchemaMismatch means the decoded alert lacks fields the survey's schema map declares.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrClassificationUnavailable means the model could not produce a usable prediction.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrSchemaViolation means the outgoing record does not satisfy the wire schema.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrSinkError marks a failed table insert or publish. It is never fatal.
	ErrSinkError = errors.New("sink error")
)
