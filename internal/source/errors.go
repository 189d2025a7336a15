package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingLocation is returned when a source is configured without synonyms_path.
var ErrMissingLocation = errors.New("synonyms_path is required")

// TransportError reports a failed request or a non-success status.
type TransportError struct {
	Op         string
	Location   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.Location, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request may succeed.
func (e *TransportError) Temporary() bool {
	if e.Err != nil {
		return !errors.Is(e.Err, context.Canceled)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
