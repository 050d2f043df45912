// Package nodecmder provides the node command, which queries a node's REST
// and JSON-RPC surfaces.
package nodecmder

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/rest"
	"github.com/papercomputeco/cspr/pkg/rpc"
)

type nodeCommander struct {
	node config.NodeConfig

	out    io.Writer
	logger *slog.Logger
}

const nodeLongDesc string = `Query a node's REST and JSON-RPC surfaces.

  cspr node status              Node status from the REST server
  cspr node peers               Connected peers (info_get_peers)
  cspr node block               Latest block, or one by --height or --hash
  cspr node metrics [prefix]    Prometheus metrics, optionally filtered by prefix
  cspr node schema [method]     RPC methods, or the schema of one method
  cspr node validators          Recent validator status changes

Examples:
  cspr node status --host 10.0.0.5
  cspr node metrics consensus
  cspr node schema chain_get_block`

const nodeShortDesc string = "Query node status, blocks, metrics and schema"

func NewNodeCmd() *cobra.Command {
	cmder := &nodeCommander{}

	cmd := &cobra.Command{
		Use:   "node",
		Short: nodeShortDesc,
		Long:  nodeLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cmdutil.Load(cmd, nil, nil)
			if err != nil {
				return err
			}
			cmder.node = cfg.Node
			cmder.out = cmd.OutOrStdout()
			cmder.logger = cmdutil.Logger(cmd)
			return nil
		},
	}

	config.AddPersistentNodeFlags(cmd, &cmder.node)

	cmd.AddCommand(cmder.newStatusCmd())
	cmd.AddCommand(cmder.newPeersCmd())
	cmd.AddCommand(cmder.newBlockCmd())
	cmd.AddCommand(cmder.newMetricsCmd())
	cmd.AddCommand(cmder.newSchemaCmd())
	cmd.AddCommand(cmder.newValidatorsCmd())

	return cmd
}

func (c *nodeCommander) connection() *node.Connection {
	return cmdutil.Connection(c.node)
}

func (c *nodeCommander) rest() *rest.Client {
	return rest.NewClient(c.connection())
}

// withRPC runs fn with a JSON-RPC client that is closed afterwards.
func (c *nodeCommander) withRPC(cmd *cobra.Command, fn func(ctx context.Context, client *rpc.Client) error) error {
	ctx, cancel := cmdutil.SignalContext(cmd)
	defer cancel()

	client := rpc.NewClient(c.connection())
	defer client.Close()

	c.logger.Debug("calling node", "url", client.URL())
	return fn(ctx, client)
}
