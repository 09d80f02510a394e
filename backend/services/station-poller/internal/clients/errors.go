package clients

import (
	"errors"
	"fmt"
)

// Extraction failure kinds. Match with errors.Is against an *ExtractionError.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnexpectedSchema  = errors.New("unexpected schema")
)

// ExtractionError reports why a poll produced no stations.
type ExtractionError struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract stations: %v after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *ExtractionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.Code)
}
