package events

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Handler is invoked once per delivered record. Returning ErrStop ends
// consumption cleanly; any other error ends it and is returned by Consume.
type Handler func(Record) error

// Consume subscribes to q on src and invokes handler synchronously for each
// matching record, in arrival order, until the handler stops, the stream
// fails or ctx is cancelled. The connection is released on every exit path.
//
// Consume returns nil only when the handler returned ErrStop.
func Consume(ctx context.Context, src Source, q Query, handler Handler, opts ...Option) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrPrecondition)
	}

	sub, err := Subscribe(ctx, src, q, opts...)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		rec, err := sub.Next()
		if err != nil {
			return err
		}

		if err := handler(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// Records returns a single-pass iterator over records matching q. Each call to
// the returned sequence opens a new connection, so iterating it twice
// restarts from the node's handshake. Subscription errors, including a
// failure to connect, are yielded as the final element.
func Records(ctx context.Context, src Source, q Query, opts ...Option) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		sub, err := Subscribe(ctx, src, q, opts...)
		if err != nil {
			yield(Record{}, err)
			return
		}
		sub.All()(yield)
	}
}
