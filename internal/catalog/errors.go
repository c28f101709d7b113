package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by a TransportError for 404 responses.
var ErrNotFound = errors.New("not found")

// TransportError covers network failures, timeouts and non-2xx responses.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the server answered 2xx with a body we could not parse.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("catalog %s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
