package recorder

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/cspr/pkg/events"
)

// Stats is a point-in-time view of the pool's counters.
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`

	// LastEventID maps event type names to the last event id recorded.
	LastEventID map[string]uint64 `json:"last_event_id"`
}

type stats struct {
	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	mu         sync.Mutex
	lastByType map[string]uint64
}

func (s *stats) record(rec events.Record) {
	s.processed.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastByType[rec.Name] = rec.ID
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	last := maps.Clone(s.lastByType)
	s.mu.Unlock()

	return Stats{
		Processed:   s.processed.Load(),
		Failed:      s.failed.Load(),
		Dropped:     s.dropped.Load(),
		LastEventID: last,
	}
}
