// Package sse provides a minimal SSE (Server-Sent Events) reader for
// consuming a node's event stream. It parses the line-oriented framing only;
// interpreting the data payload is left to callers.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// Nodes do not set it; the event kind lives in the JSON data instead.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the raw value of the "id:" field, empty when absent.
	ID string

	// HasID reports whether an "id:" field was present.
	HasID bool
}
