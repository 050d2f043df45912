package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/events"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CheckpointResponse is a single stream checkpoint.
type CheckpointResponse struct {
	Key       string `json:"key"`
	EventID   uint64 `json:"event_id"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListCheckpoints returns every stored checkpoint.
func (s *Server) handleListCheckpoints(c *fiber.Ctx) error {
	list, err := s.checkpoints.List(c.Context())
	if err != nil {
		s.logger.Error("list checkpoints", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list checkpoints"})
	}

	resp := make([]CheckpointResponse, 0, len(list))
	for _, cp := range list {
		resp = append(resp, toResponse(cp))
	}

	return c.JSON(resp)
}

// handleGetCheckpoint returns the checkpoint of one channel of the
// configured node.
func (s *Server) handleGetCheckpoint(c *fiber.Ctx) error {
	channel, err := events.ParseChannel(c.Params("channel"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	key := checkpoint.Key(s.config.Node, channel)
	id, err := s.checkpoints.Load(c.Context(), key)
	if checkpoint.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "checkpoint not found"})
	}
	if err != nil {
		s.logger.Error("load checkpoint", "key", key, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load checkpoint"})
	}

	return c.JSON(CheckpointResponse{Key: key, EventID: id})
}

// handleStats returns the recorder's counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.stats == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "recorder not running"})
	}
	return c.JSON(s.stats.Stats())
}

func toResponse(cp checkpoint.Checkpoint) CheckpointResponse {
	r := CheckpointResponse{Key: cp.Key, EventID: cp.EventID}
	if !cp.UpdatedAt.IsZero() {
		r.UpdatedAt = cp.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return r
}
