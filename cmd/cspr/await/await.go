// Package awaitcmder provides the await command, which blocks until the
// chain reaches a condition and reports where it stopped.
package awaitcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/await"
	"github.com/papercomputeco/cspr/pkg/cliui"
	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/rpc"
)

type awaitCommander struct {
	node config.NodeConfig
	cfg  *config.Config

	out    io.Writer
	status io.Writer
	logger *slog.Logger
}

const awaitLongDesc string = `Wait for the chain to reach a condition.

Subcommands block on the node's main event channel (and JSON-RPC for
chain heights) and print the event or block they stopped at:
  cspr await blocks <n>           Wait for n more blocks
  cspr await eras <n>             Wait for n era transitions, then one more block
  cspr await events <n>           Wait for n events of --event on --channel
  cspr await block-height <h>     Wait until the chain reaches block height h
  cspr await era-height <h>       Wait until the chain reaches era h
  cspr await switch-block         Poll until the latest block is a switch block

Examples:
  cspr await blocks 1
  cspr await era-height 12 --host 10.0.0.5
  cspr await events 3 --channel sigs --event FinalitySignature`

const awaitShortDesc string = "Wait for blocks, eras or events"

func NewAwaitCmd() *cobra.Command {
	cmder := &awaitCommander{}

	cmd := &cobra.Command{
		Use:   "await",
		Short: awaitShortDesc,
		Long:  awaitLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cmdutil.Load(cmd, nil, nil)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			cmder.node = cfg.Node
			cmder.out = cmd.OutOrStdout()
			cmder.status = cmd.ErrOrStderr()
			cmder.logger = cmdutil.Logger(cmd)
			return nil
		},
	}

	config.AddPersistentNodeFlags(cmd, &cmder.node)

	cmd.AddCommand(cmder.newCountCmd("blocks", "Wait for n more blocks", cmder.blocks))
	cmd.AddCommand(cmder.newCountCmd("eras", "Wait for n era transitions", cmder.eras))
	cmd.AddCommand(cmder.newEventsCmd())
	cmd.AddCommand(cmder.newHeightCmd("block-height", "Wait until the chain reaches a block height", cmder.blockHeight))
	cmd.AddCommand(cmder.newHeightCmd("era-height", "Wait until the chain reaches an era", cmder.eraHeight))
	cmd.AddCommand(cmder.newSwitchBlockCmd())

	return cmd
}

// awaiter builds an Awaiter for the configured node. The returned func
// releases the JSON-RPC client.
func (c *awaitCommander) awaiter() (*await.Awaiter, func()) {
	conn := cmdutil.Connection(c.node)
	client := rpc.NewClient(conn)
	return await.New(conn, client, await.WithLogger(c.logger)), func() { _ = client.Close() }
}

// step runs fn under a spinner bound to a signal-aware context.
func (c *awaitCommander) step(cmd *cobra.Command, msg string, fn func(ctx context.Context, a *await.Awaiter) error) error {
	ctx, cancel := cmdutil.SignalContext(cmd)
	defer cancel()

	a, release := c.awaiter()
	defer release()

	return cliui.Step(c.status, msg, func() error {
		return fn(ctx, a)
	})
}

func parseCount(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", arg, err)
	}
	return n, nil
}

func parseHeight(arg string) (uint64, error) {
	h, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid height %q: %w", arg, err)
	}
	return h, nil
}

func (c *awaitCommander) newCountCmd(use, short string, fn func(cmd *cobra.Command, n int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <n>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount(args[0])
			if err != nil {
				return err
			}
			return fn(cmd, n)
		},
	}
}

func (c *awaitCommander) newHeightCmd(use, short string, fn func(cmd *cobra.Command, h uint64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <h>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHeight(args[0])
			if err != nil {
				return err
			}
			return fn(cmd, h)
		},
	}
}

func (c *awaitCommander) newEventsCmd() *cobra.Command {
	var channel, eventType string

	cmd := &cobra.Command{
		Use:   "events <n>",
		Short: "Wait for n events of one type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount(args[0])
			if err != nil {
				return err
			}

			ch, err := events.ParseChannel(channel)
			if err != nil {
				return err
			}
			t, err := events.ParseType(eventType)
			if err != nil {
				return err
			}

			var rec events.Record
			msg := fmt.Sprintf("awaiting %d %s events on %s", n, t, ch)
			err = c.step(cmd, msg, func(ctx context.Context, a *await.Awaiter) error {
				var err error
				rec, err = a.NEvents(ctx, ch, t, n)
				return err
			})
			if err != nil {
				return err
			}
			return c.printRecord(rec)
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "main", "Event channel (main, deploys, sigs)")
	cmd.Flags().StringVarP(&eventType, "event", "e", "BlockAdded", "Event type to count, or all")

	return cmd
}

func (c *awaitCommander) blocks(cmd *cobra.Command, n int) error {
	var rec events.Record
	err := c.step(cmd, fmt.Sprintf("awaiting %d blocks", n), func(ctx context.Context, a *await.Awaiter) error {
		var err error
		rec, err = a.NBlocks(ctx, n)
		return err
	})
	if err != nil {
		return err
	}
	return c.printRecord(rec)
}

func (c *awaitCommander) eras(cmd *cobra.Command, n int) error {
	var rec events.Record
	err := c.step(cmd, fmt.Sprintf("awaiting %d eras", n), func(ctx context.Context, a *await.Awaiter) error {
		var err error
		rec, err = a.NEras(ctx, n)
		return err
	})
	if err != nil {
		return err
	}
	return c.printRecord(rec)
}

func (c *awaitCommander) blockHeight(cmd *cobra.Command, h uint64) error {
	var res await.HeightResult
	err := c.step(cmd, fmt.Sprintf("awaiting block height %d", h), func(ctx context.Context, a *await.Awaiter) error {
		var err error
		res, err = a.UntilBlockHeight(ctx, h)
		return err
	})
	if err != nil {
		return err
	}
	return c.printHeight(res)
}

func (c *awaitCommander) eraHeight(cmd *cobra.Command, h uint64) error {
	var res await.HeightResult
	err := c.step(cmd, fmt.Sprintf("awaiting era %d", h), func(ctx context.Context, a *await.Awaiter) error {
		var err error
		res, err = a.UntilEraHeight(ctx, h)
		return err
	})
	if err != nil {
		return err
	}
	return c.printHeight(res)
}

func (c *awaitCommander) newSwitchBlockCmd() *cobra.Command {
	var interval, maxWait time.Duration

	cmd := &cobra.Command{
		Use:   "switch-block",
		Short: "Poll until the latest block is a switch block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if !cmd.Flags().Changed("interval") {
				if interval, err = c.cfg.Await.PollIntervalDuration(); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("max-wait") {
				if maxWait, err = c.cfg.Await.MaxPollDuration(); err != nil {
					return err
				}
			}

			var res await.SwitchBlockResult
			err = c.step(cmd, "polling for a switch block", func(ctx context.Context, a *await.Awaiter) error {
				var err error
				res, err = a.SwitchBlock(ctx, interval, maxWait)
				return err
			})
			if err != nil {
				return err
			}

			fields := []cliui.Field{
				{Label: "found", Value: strconv.FormatBool(res.Found)},
				{Label: "polls", Value: strconv.Itoa(res.Polls)},
				{Label: "elapsed", Value: cliui.FormatDuration(res.Elapsed)},
			}
			if res.Found {
				fields = append(fields,
					cliui.Field{Label: "era", Value: strconv.FormatUint(res.Block.Header.EraID, 10)},
					cliui.Field{Label: "height", Value: strconv.FormatUint(res.Block.Header.Height, 10)},
					cliui.Field{Label: "hash", Value: res.Block.Hash},
				)
			}
			return cliui.PrintFields(c.out, fields)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", await.DefaultPollInterval, "Delay between polls")
	cmd.Flags().DurationVar(&maxWait, "max-wait", await.DefaultMaxPoll, "Give up after this long")

	return cmd
}

func (c *awaitCommander) printRecord(rec events.Record) error {
	return cliui.PrintRecord(c.out, rec, false, cmdutil.TermWidth())
}

func (c *awaitCommander) printHeight(res await.HeightResult) error {
	fields := []cliui.Field{
		{Label: "start era", Value: strconv.FormatUint(res.Start.Era, 10)},
		{Label: "start height", Value: strconv.FormatUint(res.Start.Block, 10)},
		{Label: "awaited", Value: strconv.FormatUint(res.Awaited, 10)},
	}
	if err := cliui.PrintFields(c.out, fields); err != nil {
		return err
	}
	if res.Last != nil {
		return c.printRecord(*res.Last)
	}
	return nil
}
