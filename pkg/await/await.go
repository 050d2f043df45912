// Package await blocks until the chain has made a given amount of progress.
//
// Relative waits (NBlocks, NEras, NEvents) count events on a fresh event
// stream subscription. Absolute waits (UntilBlockHeight, UntilEraHeight)
// query the chain tip once and turn the target into a relative wait.
// SwitchBlock polls the RPC surface instead of the event stream, for nodes
// whose event server is unreliable.
package await

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/logger"
	"github.com/papercomputeco/cspr/pkg/types"
)

// BlockQuerier returns the chain's latest block. *rpc.Client satisfies it.
type BlockQuerier interface {
	LatestBlock(ctx context.Context) (*types.Block, error)
}

// Awaiter waits on a single node. It holds no subscription state between
// calls, so one Awaiter may serve concurrent waits.
type Awaiter struct {
	source events.Source
	blocks BlockQuerier
	logger *slog.Logger
}

// Option configures an Awaiter.
type Option func(*Awaiter)

// WithLogger sets the awaiter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Awaiter) {
		a.logger = l
	}
}

// New creates an Awaiter reading events from source and chain heights from
// blocks.
func New(source events.Source, blocks BlockQuerier, opts ...Option) *Awaiter {
	a := &Awaiter{
		source: source,
		blocks: blocks,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NEvents waits for n events of type t on channel, counted from the moment
// the subscription opens, and returns the n-th. n must be positive.
func (a *Awaiter) NEvents(ctx context.Context, channel events.Channel, t events.Type, n int) (events.Record, error) {
	if n <= 0 {
		return events.Record{}, fmt.Errorf("%w: event count must be positive, got %d", events.ErrPrecondition, n)
	}

	sub, err := events.Subscribe(ctx, a.source, events.Query{Channel: channel, Type: t}, events.WithLogger(a.logger))
	if err != nil {
		return events.Record{}, err
	}
	defer sub.Close()

	a.logger.Debug("awaiting events", "channel", channel.Path(), "type", t.String(), "count", n)

	for {
		rec, err := sub.Next()
		if err != nil {
			return events.Record{}, fmt.Errorf("await %d %s events: %w", n, t, err)
		}

		seen := rec.Idx + 1
		a.logger.Debug("awaited event", "type", rec.Type.String(), "event_id", rec.ID, "seen", seen, "count", n)
		if seen == uint64(n) {
			return rec, nil
		}
	}
}

// NBlocks waits for n BlockAdded events and returns the last.
func (a *Awaiter) NBlocks(ctx context.Context, n int) (events.Record, error) {
	return a.NEvents(ctx, events.Main, events.BlockAdded, n)
}

// NEras waits for n Step events, then for the block that follows the last
// of them, and returns that block's BlockAdded event.
func (a *Awaiter) NEras(ctx context.Context, n int) (events.Record, error) {
	if _, err := a.NEvents(ctx, events.Main, events.Step, n); err != nil {
		return events.Record{}, err
	}
	return a.NBlocks(ctx, 1)
}

// HeightResult describes how an absolute wait completed.
type HeightResult struct {
	// Start is the chain tip when the wait began.
	Start types.ChainHeights

	// Awaited is the number of blocks or eras waited for. It is 0 when the
	// target had already been reached.
	Awaited uint64

	// Last is the event that ended the wait, nil when Awaited is 0.
	Last *events.Record
}

// Waited reports whether any events were consumed.
func (r HeightResult) Waited() bool {
	return r.Awaited > 0
}

// UntilBlockHeight waits until the chain reaches block height target. It
// returns immediately, without opening a stream, if the chain is already
// there.
func (a *Awaiter) UntilBlockHeight(ctx context.Context, target uint64) (HeightResult, error) {
	if err := checkTarget("block height", target); err != nil {
		return HeightResult{}, err
	}

	heights, err := a.ChainHeights(ctx)
	if err != nil {
		return HeightResult{}, err
	}

	result := HeightResult{Start: heights}
	if target <= heights.Block {
		a.logger.Debug("block height already reached", "target", target, "height", heights.Block)
		return result, nil
	}

	offset := target - heights.Block
	rec, err := a.NBlocks(ctx, int(offset))
	if err != nil {
		return result, err
	}
	result.Awaited = offset
	result.Last = &rec
	return result, nil
}

// UntilEraHeight waits until the chain reaches era target. It returns
// immediately, without opening a stream, if the chain is already there.
func (a *Awaiter) UntilEraHeight(ctx context.Context, target uint64) (HeightResult, error) {
	if err := checkTarget("era", target); err != nil {
		return HeightResult{}, err
	}

	heights, err := a.ChainHeights(ctx)
	if err != nil {
		return HeightResult{}, err
	}

	result := HeightResult{Start: heights}
	if target <= heights.Era {
		a.logger.Debug("era height already reached", "target", target, "era", heights.Era)
		return result, nil
	}

	offset := target - heights.Era
	rec, err := a.NEras(ctx, int(offset))
	if err != nil {
		return result, err
	}
	result.Awaited = offset
	result.Last = &rec
	return result, nil
}

// checkTarget rejects targets whose distance from the tip could not be
// counted as an int.
func checkTarget(what string, target uint64) error {
	if target > math.MaxInt {
		return fmt.Errorf("%w: %s target %d out of range", events.ErrPrecondition, what, target)
	}
	return nil
}

// ChainHeights queries the current era and block height.
func (a *Awaiter) ChainHeights(ctx context.Context) (types.ChainHeights, error) {
	block, err := a.blocks.LatestBlock(ctx)
	if err != nil {
		return types.ChainHeights{}, fmt.Errorf("query chain heights: %w", err)
	}
	return block.Heights(), nil
}
