package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent cspr configuration stored as config.toml
// in the .cspr/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Node       NodeConfig       `toml:"node"`
	Events     EventsConfig     `toml:"events"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Kafka      KafkaConfig      `toml:"kafka"`
	API        APIConfig        `toml:"api"`
	Await      AwaitConfig      `toml:"await"`
}

// NodeConfig holds the address of the node's three API surfaces.
type NodeConfig struct {
	Host     string `toml:"host,omitempty"`
	RPCPort  uint   `toml:"rpc_port,omitempty"`
	RESTPort uint   `toml:"rest_port,omitempty"`
	SSEPort  uint   `toml:"sse_port,omitempty"`
}

// EventsConfig holds the default subscription for event commands.
type EventsConfig struct {
	Channel string `toml:"channel,omitempty"`
	Type    string `toml:"type,omitempty"`
}

// CheckpointConfig selects where the recorder persists resume points.
// Provider is one of "memory", "sqlite" or "postgres".
type CheckpointConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// KafkaConfig holds publishing settings. An empty Brokers list disables
// publishing.
type KafkaConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AwaitConfig holds switch block polling settings as Go duration strings.
type AwaitConfig struct {
	PollInterval string `toml:"poll_interval,omitempty"`
	MaxPoll      string `toml:"max_poll,omitempty"`
}

// PollIntervalDuration parses PollInterval.
func (a AwaitConfig) PollIntervalDuration() (time.Duration, error) {
	return parseDuration("await.poll_interval", a.PollInterval)
}

// MaxPollDuration parses MaxPoll.
func (a AwaitConfig) MaxPollDuration() (time.Duration, error) {
	return parseDuration("await.max_poll", a.MaxPoll)
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(name, v); err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"node.host": {
		get: func(c *Config) string { return c.Node.Host },
		set: func(c *Config, v string) error { c.Node.Host = v; return nil },
	},
	"node.rpc_port":  uintKey("node.rpc_port", func(c *Config) *uint { return &c.Node.RPCPort }),
	"node.rest_port": uintKey("node.rest_port", func(c *Config) *uint { return &c.Node.RESTPort }),
	"node.sse_port":  uintKey("node.sse_port", func(c *Config) *uint { return &c.Node.SSEPort }),
	"events.channel": {
		get: func(c *Config) string { return c.Events.Channel },
		set: func(c *Config, v string) error { c.Events.Channel = v; return nil },
	},
	"events.type": {
		get: func(c *Config) string { return c.Events.Type },
		set: func(c *Config, v string) error { c.Events.Type = v; return nil },
	},
	"checkpoint.provider": {
		get: func(c *Config) string { return c.Checkpoint.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case ProviderMemory, ProviderSQLite, ProviderPostgres:
				c.Checkpoint.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for checkpoint.provider: %q (available: memory, sqlite, postgres)", v)
		},
	},
	"checkpoint.sqlite_path": {
		get: func(c *Config) string { return c.Checkpoint.SQLitePath },
		set: func(c *Config, v string) error { c.Checkpoint.SQLitePath = v; return nil },
	},
	"checkpoint.postgres_dsn": {
		get: func(c *Config) string { return c.Checkpoint.PostgresDSN },
		set: func(c *Config, v string) error { c.Checkpoint.PostgresDSN = v; return nil },
	},
	"kafka.brokers": {
		get: func(c *Config) string { return strings.Join(c.Kafka.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Kafka.Brokers = nil
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Kafka.Brokers = append(c.Kafka.Brokers, b)
				}
			}
			return nil
		},
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"await.poll_interval": durationKey("await.poll_interval", func(c *Config) *string { return &c.Await.PollInterval }),
	"await.max_poll":      durationKey("await.max_poll", func(c *Config) *string { return &c.Await.MaxPoll }),
}
