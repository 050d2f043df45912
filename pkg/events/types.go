// Package events binds to a node's SSE event stream and turns it into typed,
// filtered records. Two consumption modes are offered over the same
// pipeline: push (Consume invokes a handler per record) and pull (Subscribe
// returns a forward-only Subscription, All returns an iterator).
//
// Every subscription owns its own connection; nothing is shared between
// subscriptions, so running one per channel concurrently is safe.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel identifies the event stream path a subscription is bound to.
type Channel int

const (
	// Main carries block, era and deploy processing events.
	Main Channel = iota
	// Deploys carries deploy acceptance events.
	Deploys
	// Sigs carries finality signatures.
	Sigs
)

var channelPaths = map[Channel]string{
	Main:    "main",
	Deploys: "deploys",
	Sigs:    "sigs",
}

// Channels returns all known channels.
func Channels() []Channel {
	return []Channel{Main, Deploys, Sigs}
}

// Path returns the URL path segment of the channel.
func (c Channel) Path() string {
	if p, ok := channelPaths[c]; ok {
		return p
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return c.Path()
}

// ParseChannel parses a channel name such as "main".
func ParseChannel(s string) (Channel, error) {
	for c, p := range channelPaths {
		if strings.EqualFold(s, p) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown channel %q", ErrPrecondition, s)
}

// Type is the kind of a node event, taken from the single top-level key of
// the event's JSON data.
type Type int

const (
	// All is a filter wildcard matching every domain event. No decoded
	// event ever carries it.
	All Type = iota
	// Unknown is assigned to events whose key this package does not know.
	Unknown
	// APIVersion is the handshake sent first on every connection.
	APIVersion
	BlockAdded
	DeployAccepted
	DeployProcessed
	DeployExpired
	Fault
	FinalitySignature
	Step
	Shutdown
)

var typeNames = map[Type]string{
	All:               "All",
	Unknown:           "Unknown",
	APIVersion:        "ApiVersion",
	BlockAdded:        "BlockAdded",
	DeployAccepted:    "DeployAccepted",
	DeployProcessed:   "DeployProcessed",
	DeployExpired:     "DeployExpired",
	Fault:             "Fault",
	FinalitySignature: "FinalitySignature",
	Step:              "Step",
	Shutdown:          "Shutdown",
}

// Types returns every domain event type, excluding All, Unknown and APIVersion.
func Types() []Type {
	return []Type{
		BlockAdded,
		DeployAccepted,
		DeployProcessed,
		DeployExpired,
		Fault,
		FinalitySignature,
		Step,
		Shutdown,
	}
}

// String returns the wire name of the type, e.g. "BlockAdded".
func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType parses a wire name such as "BlockAdded" (case-insensitive).
// "all" maps to All.
func ParseType(s string) (Type, error) {
	for t, n := range typeNames {
		if t == Unknown {
			continue
		}
		if strings.EqualFold(s, n) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown event type %q", ErrPrecondition, s)
}

// typeFromKey maps a JSON top-level key to its Type.
func typeFromKey(key string) Type {
	for t, n := range typeNames {
		if t == All || t == Unknown {
			continue
		}
		if key == n {
			return t
		}
	}
	return Unknown
}

var channelTypes = map[Channel][]Type{
	Main:    {BlockAdded, DeployProcessed, DeployExpired, Fault, Step, Shutdown},
	Deploys: {DeployAccepted, Shutdown},
	Sigs:    {FinalitySignature, Shutdown},
}

// Carries reports whether events of type t are known to be emitted on
// channel c. All is carried by every channel. Nodes may add types to a
// channel, so a false result is advisory.
func (c Channel) Carries(t Type) bool {
	if t == All {
		return true
	}
	for _, ct := range channelTypes[c] {
		if ct == t {
			return true
		}
	}
	return false
}

// Raw is a decoded SSE record before filtering.
type Raw struct {
	// ID is the node-assigned sequence id. Only meaningful when HasID is set.
	ID    uint64
	HasID bool

	Channel Channel
	Type    Type

	// Name is the top-level key as sent by the node, kept for Unknown types.
	Name string

	// Payload is the JSON value stored under Name.
	Payload json.RawMessage
}

// Record is an event delivered to a caller.
type Record struct {
	// Idx is the local ordinal of the record within its subscription,
	// starting at 0. It is independent of the node's ID.
	Idx uint64

	// ID is the node-assigned sequence id.
	ID uint64

	Channel Channel
	Type    Type
	Name    string
	Payload json.RawMessage
}

// Query selects which records a subscription delivers.
type Query struct {
	Channel Channel

	// Type restricts delivery to one event type. All delivers every domain event.
	Type Type

	// StartID discards records whose ID is lower. It is also sent to the
	// node as start_from; 0 sends none and streams only new events.
	StartID uint64
}

// Validate checks that the query names a known channel and a filterable
// type. A type the channel is not known to carry is accepted.
func (q Query) Validate() error {
	if _, ok := channelPaths[q.Channel]; !ok {
		return fmt.Errorf("%w: unknown channel %d", ErrPrecondition, int(q.Channel))
	}
	if q.Type == APIVersion || q.Type == Unknown {
		return fmt.Errorf("%w: %s is not a filterable event type", ErrPrecondition, q.Type)
	}
	return nil
}
