// Package api provides an HTTP API for inspecting a running recorder:
// stream checkpoints, publishing counters and expvar diagnostics.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Node is the event server address the recorder reads from. It resolves
	// channel names to checkpoint keys.
	Node string
}
