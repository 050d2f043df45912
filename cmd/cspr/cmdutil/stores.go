package cmdutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/cspr/pkg/checkpoint/postgres"
	"github.com/papercomputeco/cspr/pkg/checkpoint/sqlite"
	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/eventstream"
	"github.com/papercomputeco/cspr/pkg/eventstream/kafka"
	"github.com/papercomputeco/cspr/pkg/eventstream/nop"
)

// Checkpoints opens the checkpoint store selected by cfg.Checkpoint.
func Checkpoints(ctx context.Context, cfger *config.Configer, cfg *config.Config, log *slog.Logger) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Provider {
	case config.ProviderMemory:
		log.Info("using in-memory checkpoints")
		return inmemory.NewStore(), nil

	case config.ProviderSQLite:
		path, err := cfger.SQLitePath(cfg)
		if err != nil {
			return nil, err
		}
		store, err := sqlite.NewStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite checkpoints: %w", err)
		}
		log.Info("using SQLite checkpoints", "path", path)
		return store, nil

	case config.ProviderPostgres:
		if cfg.Checkpoint.PostgresDSN == "" {
			return nil, fmt.Errorf("checkpoint.postgres_dsn is required for the postgres provider")
		}
		store, err := postgres.NewStore(ctx, cfg.Checkpoint.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL checkpoints: %w", err)
		}
		log.Info("using PostgreSQL checkpoints")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown checkpoint provider: %q", cfg.Checkpoint.Provider)
	}
}

// Publisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func Publisher(cfg config.KafkaConfig, log *slog.Logger) (eventstream.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("no kafka brokers configured, events are not published")
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
	})
	if err != nil {
		return nil, err
	}

	log.Info("publishing events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return pub, nil
}
