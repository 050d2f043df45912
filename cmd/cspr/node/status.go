package nodecmder

import (
	"context"
	"strconv"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/cliui"
	"github.com/papercomputeco/cspr/pkg/rpc"
	"github.com/papercomputeco/cspr/pkg/types"
)

func (c *nodeCommander) newStatusCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show node status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			status, err := c.rest().GetNodeStatus(ctx)
			if err != nil {
				return err
			}
			if raw {
				_, err := lipgloss.Fprintln(c.out, cliui.IndentJSON(status.Raw))
				return err
			}
			return cliui.PrintFields(c.out, statusFields(status))
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "Print the raw status document")

	return cmd
}

func statusFields(s *types.NodeStatus) []cliui.Field {
	fields := []cliui.Field{
		{Label: "api version", Value: s.APIVersion},
		{Label: "build", Value: s.BuildVersion},
		{Label: "chainspec", Value: s.ChainspecName},
		{Label: "reactor", Value: s.ReactorState},
		{Label: "uptime", Value: s.Uptime},
		{Label: "peers", Value: strconv.Itoa(len(s.Peers))},
	}
	if b := s.LastAddedBlock; b != nil {
		fields = append(fields,
			cliui.Field{Label: "era", Value: strconv.FormatUint(b.EraID, 10)},
			cliui.Field{Label: "height", Value: strconv.FormatUint(b.Height, 10)},
			cliui.Field{Label: "block", Value: b.Hash},
		)
	}
	return fields
}

func (c *nodeCommander) newPeersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List connected peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var peers []types.Peer
			err := c.withRPC(cmd, func(ctx context.Context, client *rpc.Client) error {
				var err error
				peers, err = client.InfoGetPeers(ctx)
				return err
			})
			if err != nil {
				return err
			}

			fields := make([]cliui.Field, 0, len(peers))
			for _, p := range peers {
				fields = append(fields, cliui.Field{Label: p.Address, Value: p.NodeID})
			}
			return cliui.PrintFields(c.out, fields)
		},
	}
}

func (c *nodeCommander) newBlockCmd() *cobra.Command {
	var (
		height uint64
		hash   string
	)

	cmd := &cobra.Command{
		Use:   "block",
		Short: "Show the latest block, or one by height or hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := rpc.BlockID{}
			switch {
			case cmd.Flags().Changed("hash"):
				id = rpc.BlockByHash(hash)
			case cmd.Flags().Changed("height"):
				id = rpc.BlockByHeight(height)
			}

			var block *types.Block
			err := c.withRPC(cmd, func(ctx context.Context, client *rpc.Client) error {
				var err error
				block, err = client.ChainGetBlock(ctx, id)
				return err
			})
			if err != nil {
				return err
			}

			return cliui.PrintFields(c.out, []cliui.Field{
				{Label: "hash", Value: block.Hash},
				{Label: "era", Value: strconv.FormatUint(block.Header.EraID, 10)},
				{Label: "height", Value: strconv.FormatUint(block.Header.Height, 10)},
				{Label: "switch block", Value: strconv.FormatBool(block.IsSwitchBlock())},
				{Label: "timestamp", Value: block.Header.Timestamp.UTC().Format(time.RFC3339)},
			})
		},
	}

	cmd.Flags().Uint64Var(&height, "height", 0, "Block height")
	cmd.Flags().StringVar(&hash, "hash", "", "Block hash")
	cmd.MarkFlagsMutuallyExclusive("height", "hash")

	return cmd
}
