package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/papercomputeco/cspr/pkg/sse"
)

// Decode types a framed SSE event received on channel. The event data must
// be a JSON object with exactly one top-level key naming the event type.
// Keys this package does not know decode to Unknown rather than failing.
//
// Any decoding problem is reported as a *MalformedEventError.
func Decode(channel Channel, ev *sse.Event) (Raw, error) {
	raw := Raw{Channel: channel}

	if ev.HasID && ev.ID != "" {
		id, err := strconv.ParseUint(strings.TrimSpace(ev.ID), 10, 64)
		if err != nil {
			return Raw{}, &MalformedEventError{ID: ev.ID, Data: ev.Data, Reason: "invalid event id"}
		}
		raw.ID = id
		raw.HasID = true
	}

	data := bytes.TrimSpace([]byte(ev.Data))
	if len(data) == 0 {
		return Raw{}, &MalformedEventError{ID: ev.ID, Data: ev.Data, Reason: "empty data"}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Raw{}, &MalformedEventError{ID: ev.ID, Data: ev.Data, Reason: "data is not a JSON object"}
	}
	if len(obj) != 1 {
		return Raw{}, &MalformedEventError{
			ID:     ev.ID,
			Data:   ev.Data,
			Reason: "expected exactly one top-level key, got " + strconv.Itoa(len(obj)),
		}
	}

	for key, payload := range obj {
		raw.Name = key
		raw.Type = typeFromKey(key)
		raw.Payload = payload
	}

	return raw, nil
}
