package await

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/types"
)

const (
	// DefaultPollInterval is the switch block polling interval.
	DefaultPollInterval = time.Second

	// DefaultMaxPoll bounds how long SwitchBlock polls.
	DefaultMaxPoll = 120 * time.Second
)

// SwitchBlockResult is the outcome of SwitchBlock. Found is false when the
// polling budget ran out; Block is then the last block polled, which is not
// a switch block.
type SwitchBlockResult struct {
	Block   *types.Block
	Found   bool
	Polls   int
	Elapsed time.Duration
}

// SwitchBlock polls the latest block every interval until it carries era
// end metadata, or until maxWait has elapsed. Running out of time is not an
// error: the result reports Found false with the last polled block. Query
// failures end polling and are returned.
func (a *Awaiter) SwitchBlock(ctx context.Context, interval, maxWait time.Duration) (SwitchBlockResult, error) {
	if interval <= 0 {
		return SwitchBlockResult{}, fmt.Errorf("%w: poll interval must be positive, got %s", events.ErrPrecondition, interval)
	}
	if maxWait < 0 {
		return SwitchBlockResult{}, fmt.Errorf("%w: max poll time must not be negative, got %s", events.ErrPrecondition, maxWait)
	}

	start := time.Now()
	result := SwitchBlockResult{}

	poll := func() (bool, error) {
		block, err := a.blocks.LatestBlock(ctx)
		if err != nil {
			return false, fmt.Errorf("poll switch block: %w", err)
		}
		result.Polls++
		result.Block = block
		result.Found = block.IsSwitchBlock()
		a.logger.Debug("polled block", "height", block.Header.Height, "era", block.Header.EraID, "switch", result.Found)
		return result.Found, nil
	}

	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, ctx.Err()

		case _, ok := <-ticker.C:
			if !ok {
				result.Elapsed = time.Since(start)
				return result, ctx.Err()
			}
			found, err := poll()
			if err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
			if found {
				result.Elapsed = time.Since(start)
				return result, nil
			}

		case <-deadline.C:
			if result.Polls == 0 {
				if _, err := poll(); err != nil {
					result.Elapsed = time.Since(start)
					return result, err
				}
			}
			result.Elapsed = time.Since(start)
			if !result.Found {
				a.logger.Debug("switch block not found before deadline", "polls", result.Polls, "max_wait", maxWait)
			}
			return result, nil
		}
	}
}
