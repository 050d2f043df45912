package events

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/cspr/pkg/utils"
)

var (
	// ErrStop is returned by a Consume handler to end consumption cleanly.
	ErrStop = errors.New("events: stop consuming")

	// ErrPrecondition is returned for invalid arguments, before any I/O.
	ErrPrecondition = errors.New("events: precondition violated")

	// ErrMalformedEvent marks a record that could not be decoded. It is
	// recovered locally: the record is skipped and the stream continues.
	ErrMalformedEvent = errors.New("events: malformed event")
)

// MalformedEventError describes a skipped record.
type MalformedEventError struct {
	ID     string
	Data   string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("events: malformed event (id=%q): %s: %q", e.ID, e.Reason, utils.Truncate(e.Data, 64))
}

// Unwrap lets errors.Is match ErrMalformedEvent.
func (e *MalformedEventError) Unwrap() error {
	return ErrMalformedEvent
}

// ErrClosed is returned by Next after the subscription has been closed.
var ErrClosed = errors.New("events: subscription closed")
