// Package node describes how to reach a node's three API surfaces (JSON-RPC,
// REST and the SSE event stream) and provides the two raw HTTP capabilities
// the rest of the module builds on: a one-shot REST GET and a long-lived
// streaming GET against the event server.
package node

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultHost is the host used when none is configured.
	DefaultHost = "localhost"

	// DefaultPortRPC is the JSON-RPC port exposed by most nodes.
	DefaultPortRPC uint = 7777

	// DefaultPortREST is the REST port exposed by most nodes.
	DefaultPortREST uint = 8888

	// DefaultPortSSE is the event server port exposed by most nodes.
	DefaultPortSSE uint = 9999

	defaultRequestTimeout = 30 * time.Second
	maxErrorBodyLen       = 256
)

// Connection is an immutable descriptor of a node's API surfaces.
// The zero value is not usable; construct one with New.
type Connection struct {
	host     string
	portRPC  uint
	portREST uint
	portSSE  uint

	client       *http.Client
	streamClient *http.Client
}

// Option configures a Connection.
type Option func(*Connection)

// WithPortRPC overrides the JSON-RPC port.
func WithPortRPC(port uint) Option {
	return func(c *Connection) {
		c.portRPC = port
	}
}

// WithPortREST overrides the REST port.
func WithPortREST(port uint) Option {
	return func(c *Connection) {
		c.portREST = port
	}
}

// WithPortSSE overrides the event server port.
func WithPortSSE(port uint) Option {
	return func(c *Connection) {
		c.portSSE = port
	}
}

// WithHTTPClient sets the client used for one-shot requests (RPC and REST).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connection) {
		c.client = client
	}
}

// WithStreamClient sets the client used for event streams. It must not
// carry an overall request timeout since streams are unbounded.
func WithStreamClient(client *http.Client) Option {
	return func(c *Connection) {
		c.streamClient = client
	}
}

// New creates a Connection for host with default ports unless overridden.
func New(host string, opts ...Option) *Connection {
	if host == "" {
		host = DefaultHost
	}

	c := &Connection{
		host:         host,
		portRPC:      DefaultPortRPC,
		portREST:     DefaultPortREST,
		portSSE:      DefaultPortSSE,
		client:       &http.Client{Timeout: defaultRequestTimeout},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the node host.
func (c *Connection) Host() string {
	return c.host
}

// PortRPC returns the JSON-RPC port.
func (c *Connection) PortRPC() uint {
	return c.portRPC
}

// PortREST returns the REST port.
func (c *Connection) PortREST() uint {
	return c.portREST
}

// PortSSE returns the event server port.
func (c *Connection) PortSSE() uint {
	return c.portSSE
}

// HTTPClient returns the client used for one-shot requests.
func (c *Connection) HTTPClient() *http.Client {
	return c.client
}

// RPCURL returns the JSON-RPC endpoint URL.
func (c *Connection) RPCURL() string {
	return c.baseURL(c.portRPC) + "/rpc"
}

// RESTURL returns the URL of a REST endpoint, e.g. RESTURL("status").
func (c *Connection) RESTURL(endpoint string) string {
	return c.baseURL(c.portREST) + "/" + endpoint
}

// EventsURL returns the URL of an event stream path, resuming from the
// given event id. An id of 0 leaves start_from out so the node streams only
// events produced after the connection opens.
func (c *Connection) EventsURL(path string, fromEventID uint64) string {
	u := c.baseURL(c.portSSE) + "/events/" + path
	if fromEventID == 0 {
		return u
	}

	q := url.Values{}
	q.Set("start_from", strconv.FormatUint(fromEventID, 10))
	return u + "?" + q.Encode()
}

// SSEAddress returns host:port of the event server. It identifies the
// stream source in checkpoints and published events.
func (c *Connection) SSEAddress() string {
	return net.JoinHostPort(c.host, strconv.FormatUint(uint64(c.portSSE), 10))
}

// String implements fmt.Stringer.
func (c *Connection) String() string {
	return fmt.Sprintf("%s (rpc=%d rest=%d sse=%d)", c.host, c.portRPC, c.portREST, c.portSSE)
}

// RESTGet issues a GET against a REST endpoint and returns the raw body.
func (c *Connection) RESTGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RESTURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("node: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrConnection, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConnection, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, body)
	}

	return body, nil
}

// OpenEventStream opens a long-lived GET against the event server at
// /events/{path}?start_from={fromEventID} and returns the live body. The
// caller owns the body and must close it. Cancelling ctx aborts the stream.
func (c *Connection) OpenEventStream(ctx context.Context, path string, fromEventID uint64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EventsURL(path, fromEventID), nil)
	if err != nil {
		return nil, fmt.Errorf("node: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: open event stream %s: %w", ErrConnection, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: open event stream %s: %w", ErrConnection, path, newStatusError(resp.StatusCode, body))
	}

	return resp.Body, nil
}

func (c *Connection) baseURL(port uint) string {
	return "http://" + net.JoinHostPort(c.host, strconv.FormatUint(uint64(port), 10))
}
