package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/cspr/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetDir  string
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .cspr/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetDir = target
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names
// in the order of the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"node.host",
		"node.rpc_port",
		"node.rest_port",
		"node.sse_port",
		"events.channel",
		"events.type",
		"checkpoint.provider",
		"checkpoint.sqlite_path",
		"checkpoint.postgres_dsn",
		"kafka.brokers",
		"kafka.topic",
		"api.listen",
		"await.poll_interval",
		"await.max_poll",
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// SQLitePath returns the checkpoint database path: the configured one, or
// checkpoints.db inside the resolved .cspr/ directory.
func (c *Configer) SQLitePath(cfg *Config) (string, error) {
	if cfg.Checkpoint.SQLitePath != "" {
		return cfg.Checkpoint.SQLitePath, nil
	}
	if c.targetDir == "" {
		return "", errors.New("no .cspr directory found, run 'cspr init' or set checkpoint.sqlite_path")
	}
	return filepath.Join(c.targetDir, defaultSQLiteFile), nil
}

// LoadConfig loads the configuration from config.toml in the target .cspr/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Node.Host == "" {
		cfg.Node.Host = defaults.Node.Host
	}
	if cfg.Node.RPCPort == 0 {
		cfg.Node.RPCPort = defaults.Node.RPCPort
	}
	if cfg.Node.RESTPort == 0 {
		cfg.Node.RESTPort = defaults.Node.RESTPort
	}
	if cfg.Node.SSEPort == 0 {
		cfg.Node.SSEPort = defaults.Node.SSEPort
	}

	if cfg.Events.Channel == "" {
		cfg.Events.Channel = defaults.Events.Channel
	}
	if cfg.Events.Type == "" {
		cfg.Events.Type = defaults.Events.Type
	}

	if cfg.Checkpoint.Provider == "" {
		cfg.Checkpoint.Provider = defaults.Checkpoint.Provider
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = defaults.Kafka.Topic
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.Await.PollInterval == "" {
		cfg.Await.PollInterval = defaults.Await.PollInterval
	}
	if cfg.Await.MaxPoll == "" {
		cfg.Await.MaxPoll = defaults.Await.MaxPoll
	}
}

// SaveConfig persists the configuration to config.toml in the target .cspr/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named node preset.
// Supported presets: "local" (a node on its default ports) and "cctl" (node
// 1 of a local CCTL network).
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "local":
		return NewDefaultConfig(), nil

	case "cctl":
		cfg := NewDefaultConfig()
		cfg.Node = NodeConfig{
			Host:     "localhost",
			RPCPort:  11101,
			RESTPort: 14101,
			SSEPort:  18101,
		}
		cfg.Await.PollInterval = "500ms"
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: local, cctl)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "cctl"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
