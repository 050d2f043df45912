package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --host
// on "cspr events", "cspr await" and "cspr watch").
type Flag struct {
	// Name is the long flag name (e.g. "host").
	Name string

	// Shorthand is the one-letter short flag (e.g. "H"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "node.host").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagHost         = "host"
	FlagRPCPort      = "rpc-port"
	FlagRESTPort     = "rest-port"
	FlagSSEPort      = "sse-port"
	FlagChannel      = "channel"
	FlagEventType    = "event"
	FlagCheckpoint   = "checkpoint"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagKafkaBrokers = "kafka-brokers"
	FlagKafkaTopic   = "kafka-topic"
	FlagAPIListen    = "api-listen"
	FlagPollInterval = "poll-interval"
	FlagMaxPoll      = "max-poll"
)

// NodeFlags are the flags every command talking to a node registers.
var NodeFlags = FlagSet{
	FlagHost: {
		Name:        "host",
		ViperKey:    "node.host",
		Description: "Node host",
	},
	FlagRPCPort: {
		Name:        "rpc-port",
		ViperKey:    "node.rpc_port",
		Description: "Node JSON-RPC port",
	},
	FlagRESTPort: {
		Name:        "rest-port",
		ViperKey:    "node.rest_port",
		Description: "Node REST port",
	},
	FlagSSEPort: {
		Name:        "sse-port",
		ViperKey:    "node.sse_port",
		Description: "Node event server port",
	},
}

// NodeFlagKeys lists the registry keys of NodeFlags.
var NodeFlagKeys = []string{FlagHost, FlagRPCPort, FlagRESTPort, FlagSSEPort}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	addStringFlag(cmd.Flags(), fs, key, target)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	addUintFlag(cmd.Flags(), fs, registryKey, target)
}

// AddNodeFlags registers the node address flags on cmd.
func AddNodeFlags(cmd *cobra.Command, n *NodeConfig) {
	addNodeFlags(cmd.Flags(), n)
}

// AddPersistentNodeFlags registers the node address flags on cmd and all of
// its subcommands.
func AddPersistentNodeFlags(cmd *cobra.Command, n *NodeConfig) {
	addNodeFlags(cmd.PersistentFlags(), n)
}

func addNodeFlags(flags *pflag.FlagSet, n *NodeConfig) {
	addStringFlag(flags, NodeFlags, FlagHost, &n.Host)
	addUintFlag(flags, NodeFlags, FlagRPCPort, &n.RPCPort)
	addUintFlag(flags, NodeFlags, FlagRESTPort, &n.RESTPort)
	addUintFlag(flags, NodeFlags, FlagSSEPort, &n.SSEPort)
}

func addStringFlag(flags *pflag.FlagSet, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		flags.StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		flags.StringVar(target, def.Name, defaultVal, def.Description)
	}
}

func addUintFlag(flags *pflag.FlagSet, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		flags.UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		flags.UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
