package api

import (
	"errors"
	"expvar"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/recorder"
)

// StatsProvider reports recorder counters. *recorder.Pool satisfies it.
type StatsProvider interface {
	Stats() recorder.Stats
}

var (
	publishVars sync.Once
	liveStats   atomic.Pointer[StatsProvider]
)

// Server is the API server for inspecting a running recorder
type Server struct {
	config      Config
	checkpoints checkpoint.Store
	stats       StatsProvider
	logger      *slog.Logger
	app         *fiber.App
}

// NewServer creates a new API server.
// The checkpoint store and stats provider are injected so they can be shared
// with the recorder writing to them.
func NewServer(config Config, checkpoints checkpoint.Store, stats StatsProvider, logger *slog.Logger) (*Server, error) {
	if checkpoints == nil {
		return nil, errors.New("api: checkpoint store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:      config,
		checkpoints: checkpoints,
		stats:       stats,
		logger:      logger,
		app:         app,
	}

	if stats != nil {
		liveStats.Store(&stats)
		publishVars.Do(func() {
			expvar.Publish("recorder", expvar.Func(func() any {
				p := liveStats.Load()
				if p == nil {
					return nil
				}
				return (*p).Stats()
			}))
		})
	}

	app.Get("/ping", s.handlePing)
	app.Get("/checkpoints", s.handleListCheckpoints)
	app.Get("/checkpoints/:channel", s.handleGetCheckpoint)
	app.Get("/stats", s.handleStats)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
