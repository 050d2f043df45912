// Package eventstream forwards recorded node events to downstream consumers.
package eventstream

import "context"

// Publisher publishes node events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *NodeEventPublished) error
	Close() error
}
