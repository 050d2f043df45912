// Package checkpoint persists the last event id recorded per event stream so
// a restarted recorder resumes where it stopped.
package checkpoint

import (
	"context"
	"time"

	"github.com/papercomputeco/cspr/pkg/events"
)

// Checkpoint is the last recorded event id of one stream.
type Checkpoint struct {
	Key       string    `json:"key"`
	EventID   uint64    `json:"event_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for persisting and retrieving checkpoints.
type Store interface {
	// Load returns the event id stored under key, or a NotFoundError.
	Load(ctx context.Context, key string) (uint64, error)

	// Save stores eventID under key. A checkpoint never moves backwards:
	// saving an id lower than the stored one is a no-op.
	Save(ctx context.Context, key string, eventID uint64) error

	// List returns all checkpoints ordered by key.
	List(ctx context.Context) ([]Checkpoint, error)

	// Close releases any resources held by the store.
	Close() error
}

// Key identifies a stream by event server address and channel, e.g.
// "localhost:9999/main".
func Key(sseAddress string, channel events.Channel) string {
	return sseAddress + "/" + channel.Path()
}

// ResumeFrom returns the start id for a subscription resuming key: one past
// the stored id, or 0 when there is no checkpoint.
func ResumeFrom(ctx context.Context, s Store, key string) (uint64, error) {
	id, err := s.Load(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return id + 1, nil
}
