package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/cspr/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CSPR_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CSPR_NODE_HOST, CSPR_KAFKA_TOPIC, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CSPR_NODE_HOST, CSPR_CHECKPOINT_PROVIDER, etc.
	v.SetEnvPrefix("CSPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Node: NodeConfig{
			Host:     v.GetString("node.host"),
			RPCPort:  v.GetUint("node.rpc_port"),
			RESTPort: v.GetUint("node.rest_port"),
			SSEPort:  v.GetUint("node.sse_port"),
		},
		Events: EventsConfig{
			Channel: v.GetString("events.channel"),
			Type:    v.GetString("events.type"),
		},
		Checkpoint: CheckpointConfig{
			Provider:    v.GetString("checkpoint.provider"),
			SQLitePath:  v.GetString("checkpoint.sqlite_path"),
			PostgresDSN: v.GetString("checkpoint.postgres_dsn"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Await: AwaitConfig{
			PollInterval: v.GetString("await.poll_interval"),
			MaxPoll:      v.GetString("await.max_poll"),
		},
	}
}

// splitList flattens comma separated entries, as given by CSPR_KAFKA_BROKERS
// or a --kafka-brokers flag.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Node
	v.SetDefault("node.host", d.Node.Host)
	v.SetDefault("node.rpc_port", d.Node.RPCPort)
	v.SetDefault("node.rest_port", d.Node.RESTPort)
	v.SetDefault("node.sse_port", d.Node.SSEPort)

	// Events
	v.SetDefault("events.channel", d.Events.Channel)
	v.SetDefault("events.type", d.Events.Type)

	// Checkpoint
	v.SetDefault("checkpoint.provider", d.Checkpoint.Provider)
	v.SetDefault("checkpoint.sqlite_path", d.Checkpoint.SQLitePath)
	v.SetDefault("checkpoint.postgres_dsn", d.Checkpoint.PostgresDSN)

	// Kafka
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Await
	v.SetDefault("await.poll_interval", d.Await.PollInterval)
	v.SetDefault("await.max_poll", d.Await.MaxPoll)
}
