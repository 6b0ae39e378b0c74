package models

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", Err...) and
// classify with errors.Is.
var (
	// ErrConfiguration means a required credential or setting is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstream means the external model call failed or returned a non-success status.
	ErrUpstream = errors.New("upstream error")
	// ErrMalformedResponse means the model response did not match the expected schema.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrStorage means a filesystem or object storage read/write failed.
	ErrStorage = errors.New("storage error")
	// ErrNotFound means a referenced document or page image is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDocument means a submitted document failed validation.
	ErrInvalidDocument = errors.New("invalid document")
)
