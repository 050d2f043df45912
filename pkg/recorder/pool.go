// Package recorder provides an asynchronous worker pool that forwards
// consumed node events to an eventstream.Publisher and advances the stream's
// checkpoint once an event has been published.
//
// The pool decouples publishing from the event stream read loop so a slow
// broker does not hold the node connection open on a blocked handler.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/eventstream"
	"github.com/papercomputeco/cspr/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrGap is matched by errors returned from Handler once an event of the
// channel could not be recorded.
var ErrGap = errors.New("recorder: event not recorded")

// GapError names the first event of a channel that was not recorded. The
// channel's checkpoint stays below ID until Recover is called and the event
// is consumed again.
type GapError struct {
	Channel events.Channel
	ID      uint64
}

func (e *GapError) Error() string {
	return fmt.Sprintf("recorder: event %d on %s was not recorded", e.ID, e.Channel.Path())
}

// Unwrap lets errors.Is match ErrGap.
func (e *GapError) Unwrap() error {
	return ErrGap
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record events.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every recorded event.
	Publisher eventstream.Publisher

	// Checkpoints is advanced after each successful publish. Optional.
	Checkpoints checkpoint.Store

	// Node is the event server address records are read from. It prefixes
	// checkpoint keys and is stamped on published envelopes.
	Node string

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger.
	Logger *slog.Logger
}

// Pool processes recording jobs asynchronously. Jobs of one channel always
// go to the same worker, so per-channel order is preserved and checkpoints
// only move forward.
//
// When an event cannot be published, checkpointed or queued, its channel
// stops advancing: later events of that channel are skipped and Handler
// fails until Recover is called, so the checkpoint never passes a lost
// event.
type Pool struct {
	config  *Config
	queues  []chan Job
	pending []sync.WaitGroup
	wg      sync.WaitGroup
	logger  *slog.Logger

	gapMu sync.Mutex
	gaps  map[events.Channel]uint64

	// mu guards queue sends against Close.
	mu     sync.RWMutex
	closed bool

	stats stats
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("recorder: publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queues:  make([]chan Job, c.NumWorkers),
		pending: make([]sync.WaitGroup, c.NumWorkers),
		logger:  c.Logger,
		gaps:    make(map[events.Channel]uint64),
		stats:   stats{lastByType: make(map[string]uint64)},
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.stats.dropped.Add(1)
		p.markGap(job.Record)
		return false
	}

	i := p.queueFor(job.Record.Channel)
	p.pending[i].Add(1)
	select {
	case p.queues[i] <- job:
		p.logger.Debug("job queued",
			"channel", job.Record.Channel.Path(),
			"event_id", job.Record.ID,
		)
		return true
	default:
		p.pending[i].Done()
		p.stats.dropped.Add(1)
		p.markGap(job.Record)
		p.logger.Error("job not queued, queue full, job dropped",
			"channel", job.Record.Channel.Path(),
			"event_id", job.Record.ID,
			"type", job.Record.Name,
		)
		return false
	}
}

// Handler adapts the pool to events.Consume. It returns a *GapError once
// the record's channel has an unrecorded event, which ends consumption so
// the caller can Recover and resubscribe from the channel's checkpoint.
func (p *Pool) Handler() events.Handler {
	return func(rec events.Record) error {
		if err := p.gapError(rec.Channel); err != nil {
			return err
		}
		if !p.Enqueue(Job{Record: rec}) {
			return p.gapError(rec.Channel)
		}
		return nil
	}
}

// Recover waits for the channel's queued jobs to finish and clears its gap,
// after which its checkpoint advances again. Call it once the consumer that
// fed the channel has returned and before resubscribing.
func (p *Pool) Recover(channel events.Channel) {
	p.pending[p.queueFor(channel)].Wait()

	p.gapMu.Lock()
	defer p.gapMu.Unlock()
	if id, ok := p.gaps[channel]; ok {
		p.logger.Info("recovering channel after unrecorded event", "channel", channel.Path(), "event_id", id)
		delete(p.gaps, channel)
	}
}

func (p *Pool) queueFor(channel events.Channel) int {
	return int(channel) % len(p.queues)
}

// markGap stops the record's channel at the record's id, keeping the
// lowest id when several events are lost.
func (p *Pool) markGap(rec events.Record) {
	p.gapMu.Lock()
	defer p.gapMu.Unlock()
	if id, ok := p.gaps[rec.Channel]; !ok || rec.ID < id {
		p.gaps[rec.Channel] = rec.ID
	}
}

func (p *Pool) gapError(channel events.Channel) error {
	p.gapMu.Lock()
	defer p.gapMu.Unlock()
	if id, ok := p.gaps[channel]; ok {
		return &GapError{Channel: channel, ID: id}
	}
	return nil
}

// behindGap reports whether rec comes at or after its channel's gap.
func (p *Pool) behindGap(rec events.Record) bool {
	p.gapMu.Lock()
	defer p.gapMu.Unlock()
	id, ok := p.gaps[rec.Channel]
	return ok && rec.ID >= id
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this after the event stream consumer has returned.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return p.stats.snapshot()
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("recorder worker started", "worker_id", id)

	for job := range p.queues[id] {
		p.processJob(job)
		p.pending[id].Done()
	}

	p.logger.Debug("recorder worker stopped", "worker_id", id)
}

// processJob publishes the record and, on success, advances its checkpoint.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	rec := job.Record

	if p.behindGap(rec) {
		p.stats.dropped.Add(1)
		p.logger.Debug("skipping event behind unrecorded gap",
			"channel", rec.Channel.Path(),
			"event_id", rec.ID,
		)
		return
	}

	ev := eventstream.NewNodeEventPublished(p.config.Node, rec)
	if err := p.config.Publisher.Publish(ctx, ev); err != nil {
		p.stats.failed.Add(1)
		p.markGap(rec)
		p.logger.Error("publish failed",
			"channel", rec.Channel.Path(),
			"event_id", rec.ID,
			"type", rec.Name,
			"error", err,
		)
		return
	}

	if p.config.Checkpoints != nil {
		key := checkpoint.Key(p.config.Node, rec.Channel)
		if err := p.config.Checkpoints.Save(ctx, key, rec.ID); err != nil {
			p.stats.failed.Add(1)
			p.markGap(rec)
			p.logger.Error("checkpoint save failed",
				"key", key,
				"event_id", rec.ID,
				"error", err,
			)
			return
		}
	}

	p.stats.record(rec)
	p.logger.Debug("event recorded",
		"channel", rec.Channel.Path(),
		"event_id", rec.ID,
		"type", rec.Name,
		"publish_id", ev.EventID,
	)
}
