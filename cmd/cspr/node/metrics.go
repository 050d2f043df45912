package nodecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/cliui"
)

func (c *nodeCommander) newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [prefix]",
		Short: "Show node metrics, optionally filtered by name prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			var (
				metrics []string
				err     error
			)
			if len(args) == 1 {
				metrics, err = c.rest().GetNodeMetric(ctx, args[0])
			} else {
				metrics, err = c.rest().GetNodeMetrics(ctx)
			}
			if err != nil {
				return err
			}

			for _, m := range metrics {
				if _, err := fmt.Fprintln(c.out, m); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *nodeCommander) newSchemaCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "schema [method]",
		Short: "List RPC methods, or show the schema of one method",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			if len(args) == 0 {
				return c.listMethods(ctx)
			}

			fragment, err := c.rest().GetRPCEndpoint(ctx, args[0])
			if err != nil {
				return err
			}

			doc := cliui.IndentJSON(fragment)
			if !raw {
				rendered, err := cliui.RenderMarkdown("```json\n" + doc + "\n```\n")
				if err != nil {
					c.logger.Debug("markdown rendering failed", "error", err)
				}
				doc = rendered
			}
			_, err = lipgloss.Fprintln(c.out, strings.TrimRight(doc, "\n"))
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print plain JSON without terminal styling")

	return cmd
}

func (c *nodeCommander) listMethods(ctx context.Context) error {
	names, err := c.rest().GetRPCEndpoints(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(c.out, n); err != nil {
			return err
		}
	}
	return nil
}

func (c *nodeCommander) newValidatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validators",
		Short: "Show recent validator status changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			changes, err := c.rest().GetValidatorChanges(ctx)
			if err != nil {
				return err
			}

			fields := make([]cliui.Field, 0, len(changes))
			for _, ch := range changes {
				fields = append(fields, cliui.Field{Label: ch.PublicKey, Value: compactJSON(ch.StatusChanges)})
			}
			return cliui.PrintFields(c.out, fields)
		},
	}
}

func compactJSON(raw []byte) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}
