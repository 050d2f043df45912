package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/cspr/pkg/logger"
	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/sse"
)

// Source opens a node event stream. *node.Connection satisfies it.
type Source interface {
	OpenEventStream(ctx context.Context, path string, fromEventID uint64) (io.ReadCloser, error)
}

var _ Source = (*node.Connection)(nil)

// Option configures a subscription.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tee    io.Writer
}

// WithLogger sets the logger used for skipped records and stream failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTee copies the raw stream lines to w as they are read.
func WithTee(w io.Writer) Option {
	return func(o *options) {
		o.tee = w
	}
}

// Subscription is a forward-only, single-consumer sequence of records bound
// to one event stream connection. Next must not be called concurrently;
// Close may be called from any goroutine to interrupt a blocked Next.
type Subscription struct {
	ctx    context.Context
	query  Query
	body   io.ReadCloser
	reader *sse.Reader
	filter *Filter
	logger *slog.Logger

	stopAfter func() bool
	closeOnce sync.Once
	closed    atomic.Bool

	skipped atomic.Uint64
	err     error
}

// Subscribe validates q, opens the channel's stream on src and returns a
// Subscription delivering matching records. The stream is requested from
// q.StartID, so a resuming caller receives the node's replay.
//
// Cancelling ctx closes the connection, which interrupts a blocked Next.
// The caller must Close the subscription.
func Subscribe(ctx context.Context, src Source, q Query, opts ...Option) (*Subscription, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil event source", ErrPrecondition)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}
	if !q.Channel.Carries(q.Type) {
		o.logger.Warn("channel is not known to carry event type", "channel", q.Channel.Path(), "type", q.Type.String())
	}

	body, err := src.OpenEventStream(ctx, q.Channel.Path(), q.StartID)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		ctx:    ctx,
		query:  q,
		body:   body,
		reader: sse.NewTeeReader(body, o.tee),
		filter: NewFilter(q),
		logger: o.logger.With("channel", q.Channel.Path(), "type", q.Type.String()),
	}
	s.stopAfter = context.AfterFunc(ctx, func() {
		s.body.Close()
	})

	s.logger.Debug("subscribed to event stream", "start_id", q.StartID)
	return s, nil
}

// Query returns the query the subscription was created with.
func (s *Subscription) Query() Query {
	return s.query
}

// Next blocks until the next matching record arrives.
//
// Malformed records are skipped. When the stream ends or fails the error
// wraps node.ErrConnection; when ctx is cancelled it is ctx.Err(); after
// Close it is ErrClosed. Once Next has failed it keeps returning the same
// error.
func (s *Subscription) Next() (Record, error) {
	if s.err != nil {
		return Record{}, s.err
	}
	if s.closed.Load() {
		return Record{}, s.fail(ErrClosed)
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return Record{}, s.fail(err)
		}
		if s.closed.Load() {
			return Record{}, s.fail(ErrClosed)
		}

		ev, err := s.reader.Next()
		if err != nil {
			return Record{}, s.fail(s.streamError(err))
		}

		raw, err := Decode(s.query.Channel, ev)
		if err != nil {
			s.skipped.Add(1)
			s.logger.Debug("skipping malformed event", "error", err)
			continue
		}

		if raw.Type == APIVersion {
			s.logger.Debug("event stream handshake", "api_version", string(raw.Payload))
			continue
		}

		rec, ok := s.filter.Apply(raw)
		if !ok {
			continue
		}
		return rec, nil
	}
}

// All returns an iterator over the remaining records. The iterator yields a
// single non-nil error as its last element when the stream fails, and
// closes the subscription when iteration stops for any reason.
func (s *Subscription) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		defer s.Close()

		for {
			rec, err := s.Next()
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Delivered returns the number of records returned so far.
func (s *Subscription) Delivered() uint64 {
	return s.filter.Delivered()
}

// Skipped returns the number of malformed records skipped so far.
func (s *Subscription) Skipped() uint64 {
	return s.skipped.Load()
}

// Close releases the connection. It is safe to call more than once and
// from a goroutine other than the one calling Next.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.stopAfter()
		err = s.body.Close()
		s.logger.Debug("event stream closed", "delivered", s.Delivered(), "skipped", s.Skipped())
	})
	return err
}

func (s *Subscription) streamError(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: event stream %s ended", node.ErrConnection, s.query.Channel.Path())
	}
	return fmt.Errorf("%w: read event stream %s: %w", node.ErrConnection, s.query.Channel.Path(), err)
}

func (s *Subscription) fail(err error) error {
	s.err = err
	if !s.closed.Load() && !errors.Is(err, ErrClosed) {
		s.logger.Debug("event stream stopped", "error", err)
	}
	s.Close()
	return err
}
