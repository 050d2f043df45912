// Package watchcmder provides the watch command, which records a node's
// event stream: every event is published downstream and the stream's
// checkpoint advanced, so a restarted recorder resumes where it stopped.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/cspr/api"
	"github.com/papercomputeco/cspr/cmd/cspr/cmdutil"
	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/config"
	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/logger"
	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/recorder"
)

type watchCommander struct {
	flags config.Config

	noAPI     bool
	reconnect bool
	workers   uint
	logFile   string

	cfg    *config.Config
	viper  *viper.Viper
	logger *slog.Logger
}

const watchLongDesc string = `Record a node's event stream.

Subscribes to one event channel, publishes every matching event to Kafka
(when brokers are configured) and stores the id of the last published event
as the channel's checkpoint. On start the subscription resumes one past the
stored checkpoint.

While running, an API server exposes checkpoints and recorder counters:
  GET /ping                    Liveness
  GET /checkpoints             All checkpoints
  GET /checkpoints/<channel>   The checkpoint of one channel on this node
  GET /stats                   Processed, failed and dropped counters
  GET /debug/vars              expvar diagnostics

Checkpoints are kept in SQLite by default (checkpoints.db in the .cspr/
directory), in PostgreSQL with --checkpoint postgres, or in memory.

Examples:
  cspr watch
  cspr watch --channel deploys --kafka-brokers localhost:9092
  cspr watch --checkpoint postgres --postgres "postgres://localhost/cspr"
  cspr watch --reconnect --no-api`

const watchShortDesc string = "Record a node's event stream"

var watchFlags = config.FlagSet{
	config.FlagChannel: {
		Name:        "channel",
		Shorthand:   "c",
		ViperKey:    "events.channel",
		Description: "Event channel to record (main, deploys, sigs)",
	},
	config.FlagEventType: {
		Name:        "event",
		Shorthand:   "e",
		ViperKey:    "events.type",
		Description: "Event type to record, or all",
	},
	config.FlagCheckpoint: {
		Name:        "checkpoint",
		ViperKey:    "checkpoint.provider",
		Description: "Checkpoint store (memory, sqlite, postgres)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "checkpoint.sqlite_path",
		Description: "Path to the SQLite checkpoint database",
	},
	config.FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "checkpoint.postgres_dsn",
		Description: "PostgreSQL connection string for checkpoints",
	},
	config.FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "kafka.brokers",
		Description: "Comma separated Kafka brokers (empty disables publishing)",
	},
	config.FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "kafka.topic",
		Description: "Kafka topic for recorded events",
	},
	config.FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
}

var watchFlagKeys = []string{
	config.FlagChannel,
	config.FlagEventType,
	config.FlagCheckpoint,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagAPIListen,
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	var brokers string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := cmdutil.Load(cmd, watchFlags, watchFlagKeys)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLog, err := cmder.newLogger(cmd)
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = log

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(ctx, configDir)
		},
	}

	config.AddNodeFlags(cmd, &cmder.flags.Node)
	config.AddStringFlag(cmd, watchFlags, config.FlagChannel, &cmder.flags.Events.Channel)
	config.AddStringFlag(cmd, watchFlags, config.FlagEventType, &cmder.flags.Events.Type)
	config.AddStringFlag(cmd, watchFlags, config.FlagCheckpoint, &cmder.flags.Checkpoint.Provider)
	config.AddStringFlag(cmd, watchFlags, config.FlagSQLite, &cmder.flags.Checkpoint.SQLitePath)
	config.AddStringFlag(cmd, watchFlags, config.FlagPostgres, &cmder.flags.Checkpoint.PostgresDSN)
	config.AddStringFlag(cmd, watchFlags, config.FlagKafkaBrokers, &brokers)
	config.AddStringFlag(cmd, watchFlags, config.FlagKafkaTopic, &cmder.flags.Kafka.Topic)
	config.AddStringFlag(cmd, watchFlags, config.FlagAPIListen, &cmder.flags.API.Listen)
	cmd.Flags().BoolVar(&cmder.noAPI, "no-api", false, "Do not start the API server")
	cmd.Flags().BoolVar(&cmder.reconnect, "reconnect", false, "Resubscribe from the checkpoint when the stream drops")
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Number of publishing workers (default 3)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// newLogger returns the command logger, fanned out to --log-file when set.
func (c *watchCommander) newLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	log := cmdutil.Logger(cmd)
	if c.logFile == "" {
		return log, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	fileLog := logger.New(logger.WithDebug(debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(log, fileLog), func() { _ = f.Close() }, nil
}

func (c *watchCommander) query() (events.Query, error) {
	channel, err := events.ParseChannel(c.cfg.Events.Channel)
	if err != nil {
		return events.Query{}, err
	}
	t, err := events.ParseType(c.cfg.Events.Type)
	if err != nil {
		return events.Query{}, err
	}

	q := events.Query{Channel: channel, Type: t}
	if err := q.Validate(); err != nil {
		return events.Query{}, err
	}
	return q, nil
}

func (c *watchCommander) run(ctx context.Context, configDir string) error {
	q, err := c.query()
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := cmdutil.Checkpoints(ctx, cfger, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := cmdutil.Publisher(c.cfg.Kafka, c.logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	conn := cmdutil.Connection(c.cfg.Node)

	pool, err := recorder.NewPool(&recorder.Config{
		Publisher:   pub,
		Checkpoints: store,
		Node:        conn.SSEAddress(),
		NumWorkers:  c.workers,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	errChan := make(chan error, 2)

	if !c.noAPI && c.cfg.API.Listen != "" {
		server, err := api.NewServer(api.Config{
			ListenAddr: c.cfg.API.Listen,
			Node:       conn.SSEAddress(),
		}, store, pool, c.logger)
		if err != nil {
			return err
		}
		defer server.Shutdown()

		go func() {
			if err := server.Run(); err != nil {
				errChan <- fmt.Errorf("API server error: %w", err)
			}
		}()
	}

	c.watchConfig()

	go func() {
		errChan <- c.record(ctx, conn, store, pool, q)
	}()

	err = <-errChan
	if errors.Is(err, context.Canceled) {
		c.logger.Info("shutting down", "stats", pool.Stats())
		return nil
	}
	return err
}

// watchConfig logs a notice when config.toml changes. Settings are read
// once at start, so changes need a restart.
func (c *watchCommander) watchConfig() {
	file := c.viper.ConfigFileUsed()
	if file == "" {
		return
	}

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.logger.Warn("config file changed, restart to apply", "file", e.Name, "op", e.Op.String())
	})
	c.viper.WatchConfig()
	c.logger.Debug("watching config file", "file", file)
}

// record consumes the stream into pool, starting one past the stored
// checkpoint. With reconnect set, connection failures and events the pool
// could not record resubscribe from the latest checkpoint with exponential
// backoff.
func (c *watchCommander) record(ctx context.Context, conn *node.Connection, store checkpoint.Store, pool *recorder.Pool, q events.Query) error {
	key := checkpoint.Key(conn.SSEAddress(), q.Channel)

	subscribe := func() error {
		pool.Recover(q.Channel)

		start, err := checkpoint.ResumeFrom(ctx, store, key)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("loading checkpoint %s: %w", key, err))
		}
		q.StartID = start

		c.logger.Info("recording events",
			"address", conn.SSEAddress(),
			"channel", q.Channel.Path(),
			"type", q.Type.String(),
			"start_id", start,
		)

		err = events.Consume(ctx, conn, q, pool.Handler(), events.WithLogger(c.logger))
		if err == nil || !c.reconnect {
			return backoff.Permanent(err)
		}
		switch {
		case errors.Is(err, node.ErrConnection):
			c.logger.Warn("event stream dropped, reconnecting", "error", err)
		case errors.Is(err, recorder.ErrGap):
			c.logger.Warn("event not recorded, resubscribing from checkpoint", "error", err)
		default:
			return backoff.Permanent(err)
		}
		return err
	}

	if !c.reconnect {
		return unwrapPermanent(subscribe())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return backoff.Retry(subscribe, backoff.WithContext(b, ctx))
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
