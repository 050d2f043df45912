// Package eventscmder provides the events command, which prints a node's
// event stream.
package eventscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/cliui"
	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/events"
)

type eventsCommander struct {
	node      config.NodeConfig
	channel   string
	eventType string
	startID   uint64
	count     uint
	compact   bool
	tee       string

	out    io.Writer
	logger *slog.Logger
}

const eventsLongDesc string = `Print events emitted by a node.

Subscribes to one event channel (main, deploys or sigs) and prints every
matching event as it arrives until interrupted, --count events have been
printed, or the node closes the stream.

Each event is printed as a header line followed by its JSON payload:
  Event #<n> :: <channel> :: <type> :: <event id>

Examples:
  cspr events
  cspr events --channel main --event BlockAdded
  cspr events --channel sigs --event-id 120400 --compact
  cspr events --event Step --count 1`

const eventsShortDesc string = "Print a node's event stream"

var eventsFlags = config.FlagSet{
	config.FlagChannel: {
		Name:        "channel",
		Shorthand:   "c",
		ViperKey:    "events.channel",
		Description: "Event channel (main, deploys, sigs)",
	},
	config.FlagEventType: {
		Name:        "event",
		Shorthand:   "e",
		ViperKey:    "events.type",
		Description: "Event type to print, or all",
	},
}

var eventsFlagKeys = []string{config.FlagChannel, config.FlagEventType}

func NewEventsCmd() *cobra.Command {
	cmder := &eventsCommander{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: eventsShortDesc,
		Long:  eventsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cmdutil.Load(cmd, eventsFlags, eventsFlagKeys)
			if err != nil {
				return err
			}
			cmder.node = cfg.Node
			cmder.channel = cfg.Events.Channel
			cmder.eventType = cfg.Events.Type
			cmder.out = cmd.OutOrStdout()
			cmder.logger = cmdutil.Logger(cmd)

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			return cmder.run(ctx)
		},
	}

	config.AddNodeFlags(cmd, &cmder.node)
	config.AddStringFlag(cmd, eventsFlags, config.FlagChannel, &cmder.channel)
	config.AddStringFlag(cmd, eventsFlags, config.FlagEventType, &cmder.eventType)
	cmd.Flags().Uint64Var(&cmder.startID, "event-id", 0, "Skip events with a lower id and ask the node to replay from it")
	cmd.Flags().UintVarP(&cmder.count, "count", "n", 0, "Stop after printing this many events (0 = unlimited)")
	cmd.Flags().BoolVar(&cmder.compact, "compact", false, "Print one line per event")
	cmd.Flags().StringVar(&cmder.tee, "tee", "", "Append the raw event stream to this file")

	return cmd
}

// query builds the subscription query from the command's flags.
func (c *eventsCommander) query() (events.Query, error) {
	channel, err := events.ParseChannel(c.channel)
	if err != nil {
		return events.Query{}, err
	}

	t, err := events.ParseType(c.eventType)
	if err != nil {
		return events.Query{}, err
	}

	q := events.Query{Channel: channel, Type: t, StartID: c.startID}
	if err := q.Validate(); err != nil {
		return events.Query{}, err
	}
	return q, nil
}

func (c *eventsCommander) run(ctx context.Context) error {
	q, err := c.query()
	if err != nil {
		return err
	}

	opts := []events.Option{events.WithLogger(c.logger)}
	if c.tee != "" {
		f, err := os.OpenFile(c.tee, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening tee file: %w", err)
		}
		defer f.Close()
		opts = append(opts, events.WithTee(f))
	}

	conn := cmdutil.Connection(c.node)
	width := cmdutil.TermWidth()

	c.logger.Debug("subscribing",
		"address", conn.SSEAddress(),
		"channel", q.Channel.Path(),
		"type", q.Type.String(),
		"start_id", q.StartID,
	)

	var printed uint
	err = events.Consume(ctx, conn, q, func(rec events.Record) error {
		if err := cliui.PrintRecord(c.out, rec, c.compact, width); err != nil {
			return err
		}
		printed++
		if c.count > 0 && printed >= c.count {
			return events.ErrStop
		}
		return nil
	}, opts...)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
