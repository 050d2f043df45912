// Package cmdutil holds the wiring shared by cspr commands: layered config
// loading, node connections, loggers and backing stores.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/logger"
	"github.com/papercomputeco/cspr/pkg/node"
)

const defaultTermWidth = 100

// Load resolves the effective config for cmd: flags registered from fs and
// the node flags take precedence over CSPR_ env vars, config.toml and
// defaults.
func Load(cmd *cobra.Command, fs config.FlagSet, keys []string) (*config.Config, *viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.NodeFlags, config.NodeFlagKeys)
	if fs != nil {
		config.BindRegisteredFlags(v, cmd, fs, keys)
	}

	return config.FromViper(v), v, nil
}

// Connection builds a node connection from cfg.
func Connection(cfg config.NodeConfig) *node.Connection {
	return node.New(cfg.Host,
		node.WithPortRPC(cfg.RPCPort),
		node.WithPortREST(cfg.RESTPort),
		node.WithPortSSE(cfg.SSEPort),
	)
}

// Logger returns the command logger: pretty on a terminal, JSON otherwise,
// always on stderr so stdout stays machine readable.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	tty := term.IsTerminal(int(os.Stderr.Fd()))

	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(tty),
		logger.WithJSON(!tty),
		logger.WithWriter(os.Stderr),
	)
}

// TermWidth returns the stdout terminal width, or 100 when stdout is not a
// terminal.
func TermWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTermWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultTermWidth
	}
	return w
}

// SignalContext derives a context from cmd that is cancelled on SIGINT or
// SIGTERM.
func SignalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
