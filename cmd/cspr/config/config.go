// Package configcmder provides the config command for managing persistent
// cspr configuration stored in the .cspr/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/pkg/cliui"
	"github.com/papercomputeco/cspr/pkg/config"
)

const configLongDesc string = `Manage persistent cspr configuration.

Configuration is stored as config.toml in the .cspr/ directory and provides
default values for command flags. CLI flags and CSPR_ environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  node.host, node.rpc_port, node.rest_port, node.sse_port,
  events.channel, events.type,
  checkpoint.provider, checkpoint.sqlite_path, checkpoint.postgres_dsn,
  kafka.brokers, kafka.topic, api.listen,
  await.poll_interval, await.max_poll

Use subcommands to get, set, or list configuration values:
  cspr config set <key> <value>    Set a configuration value
  cspr config get <key>            Get a configuration value
  cspr config list                 List all configuration values

Examples:
  cspr config set node.host 10.0.0.5
  cspr config set kafka.brokers broker-1:9092,broker-2:9092
  cspr config get node.sse_port
  cspr config list`

const configShortDesc string = "Manage persistent cspr configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		lipgloss.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	lipgloss.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
