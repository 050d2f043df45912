package config

// Checkpoint store providers.
const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
)

const (
	defaultHost     = "localhost"
	defaultRPCPort  = 7777
	defaultRESTPort = 8888
	defaultSSEPort  = 9999

	defaultChannel = "main"
	defaultType    = "all"

	defaultCheckpointProvider = ProviderSQLite
	defaultSQLiteFile         = "checkpoints.db"

	defaultKafkaTopic = "cspr.node.events"
	defaultAPIListen  = ":8081"

	defaultPollInterval = "1s"
	defaultMaxPoll      = "2m0s"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Node: NodeConfig{
			Host:     defaultHost,
			RPCPort:  defaultRPCPort,
			RESTPort: defaultRESTPort,
			SSEPort:  defaultSSEPort,
		},
		Events: EventsConfig{
			Channel: defaultChannel,
			Type:    defaultType,
		},
		Checkpoint: CheckpointConfig{
			Provider: defaultCheckpointProvider,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Await: AwaitConfig{
			PollInterval: defaultPollInterval,
			MaxPoll:      defaultMaxPoll,
		},
	}
}
