// Package csprcmder
package csprcmder

import (
	"github.com/spf13/cobra"

	awaitcmder "github.com/papercomputeco/cspr/cmd/cspr/await"
	configcmder "github.com/papercomputeco/cspr/cmd/cspr/config"
	eventscmder "github.com/papercomputeco/cspr/cmd/cspr/events"
	initcmder "github.com/papercomputeco/cspr/cmd/cspr/init"
	nodecmder "github.com/papercomputeco/cspr/cmd/cspr/node"
	versioncmder "github.com/papercomputeco/cspr/cmd/cspr/version"
	watchcmder "github.com/papercomputeco/cspr/cmd/cspr/watch"
)

const csprLongDesc string = `cspr is a client for a node's event stream, REST and JSON-RPC surfaces.

Subscribe to events, wait for chain progress and record streams using:
  cspr events          Print a node's event stream
  cspr await           Wait for blocks, eras, events or a switch block
  cspr watch           Record a stream to Kafka with resumable checkpoints
  cspr node            Query node status, blocks, metrics and schema
  cspr init            Initialize a .cspr/ directory from a preset
  cspr config          Manage persistent configuration`

const csprShortDesc string = "cspr - node event stream client"

func NewCsprCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cspr",
		Short:        csprShortDesc,
		Long:         csprLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .cspr/ config directory")

	// Add subcommands
	cmd.AddCommand(eventscmder.NewEventsCmd())
	cmd.AddCommand(awaitcmder.NewAwaitCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(nodecmder.NewNodeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
