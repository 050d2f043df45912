package node

import (
	"errors"
	"fmt"
)

// ErrConnection marks transport-level failures: refused or reset
// connections, timeouts, non-200 stream responses and streams that end.
// It is never retried by this module.
var ErrConnection = errors.New("node: connection failed")

// StatusError is returned when a node answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func newStatusError(code int, body []byte) *StatusError {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen]
	}
	return &StatusError{StatusCode: code, Body: s}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("node: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("node: HTTP %d: %s", e.StatusCode, e.Body)
}
