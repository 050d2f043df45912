// Package initcmder provides the init command for initializing a .cspr
// directory with a preset config.toml.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .cspr/ directory in the current working directory.

Creates a local .cspr/ directory that takes precedence over the default
~/.cspr/ directory, and writes a config.toml seeded from a node preset:
  local   A node on its default ports (7777, 8888, 9999)
  cctl    Node 1 of a local CCTL network (11101, 14101, 18101)

An existing config.toml is left untouched.

Examples:
  cspr init
  cspr init --preset cctl
  cspr init --global`

const initShortDesc string = "Initialize a local .cspr/ directory"

type initCommander struct {
	preset string
	global bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "local",
		"Node preset for config.toml ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.global, "global", false, "Initialize ~/.cspr instead of ./.cspr")

	return cmd
}

func (c *initCommander) run(w io.Writer) error {
	cfg, err := config.PresetConfig(c.preset)
	if err != nil {
		return err
	}

	parent := ""
	if !c.global {
		if parent, err = os.Getwd(); err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	dir, err := dotdir.NewManager().Init(parent)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .cspr directory: %s (preset %s)\n", dir, c.preset)
	return nil
}
