package eventstream

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/cspr/pkg/events"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeNodeEvent is emitted for every node event the recorder handles.
	EventTypeNodeEvent = "cspr.node.event"
)

// NodeEventPublished is a transport-neutral envelope around one recorded
// node event.
type NodeEventPublished struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Record        EventRecord `json:"record"`
}

// EventSource identifies the stream the event was read from.
type EventSource struct {
	Node    string `json:"node"`
	Channel string `json:"channel"`
}

// EventRecord is the recorded node event.
type EventRecord struct {
	Idx     uint64          `json:"idx"`
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewNodeEventPublished wraps rec, read from the event server at node, in a
// fresh envelope.
func NewNodeEventPublished(node string, rec events.Record) *NodeEventPublished {
	return &NodeEventPublished{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeNodeEvent,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Node:    node,
			Channel: rec.Channel.Path(),
		},
		Record: EventRecord{
			Idx:     rec.Idx,
			ID:      rec.ID,
			Type:    rec.Name,
			Payload: rec.Payload,
		},
	}
}
