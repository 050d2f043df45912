// Package nodetest provides an in-process fake node serving the event
// stream, REST and JSON-RPC surfaces on one httptest server.
package nodetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/papercomputeco/cspr/pkg/node"
)

// RPCHandler answers one JSON-RPC method. A non-nil error object is sent
// instead of the result.
type RPCHandler func(params json.RawMessage) (result any, rpcErr map[string]any)

// Server is a fake node. All surfaces share one port.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	streams  map[string]string
	rest     map[string]string
	methods  map[string]RPCHandler
	requests []*url.URL
}

// NewServer starts a fake node. Close it when done.
func NewServer() *Server {
	s := &Server{
		streams: make(map[string]string),
		rest:    make(map[string]string),
		methods: make(map[string]RPCHandler),
	}
	s.Server = httptest.NewServer(s)
	return s
}

// Stream sets the raw SSE body served at /events/{path}.
func (s *Server) Stream(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[path] = body
}

// REST sets the body served at /{endpoint}.
func (s *Server) REST(endpoint, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rest[endpoint] = body
}

// Method registers a JSON-RPC method.
func (s *Server) Method(name string, h RPCHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = h
}

// Requests returns the URLs requested so far.
func (s *Server) Requests() []*url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*url.URL(nil), s.requests...)
}

// StreamOpens counts requests to /events/{path}.
func (s *Server) StreamOpens(path string) int {
	n := 0
	for _, u := range s.Requests() {
		if u.Path == "/events/"+path {
			n++
		}
	}
	return n
}

// HostPort returns the host and port the server listens on.
func (s *Server) HostPort() (string, uint) {
	u, err := url.Parse(s.URL)
	if err != nil {
		panic(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		panic(err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		panic(err)
	}
	return host, uint(port)
}

// Connection returns a node.Connection with every surface on this server.
func (s *Server) Connection() *node.Connection {
	host, port := s.HostPort()
	return node.New(host, node.WithPortRPC(port), node.WithPortREST(port), node.WithPortSSE(port))
}

// Args returns CLI flags pointing every surface at this server.
func (s *Server) Args() []string {
	host, port := s.HostPort()
	p := strconv.FormatUint(uint64(port), 10)
	return []string{"--host", host, "--rpc-port", p, "--rest-port", p, "--sse-port", p}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL)
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/rpc":
		s.serveRPC(w, r)
	case strings.HasPrefix(r.URL.Path, "/events/"):
		s.serveStream(w, strings.TrimPrefix(r.URL.Path, "/events/"))
	default:
		s.serveREST(w, strings.TrimPrefix(r.URL.Path, "/"))
	}
}

func (s *Server) serveStream(w http.ResponseWriter, path string) {
	s.mu.Lock()
	body, ok := s.streams[path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, body)
}

func (s *Server) serveREST(w http.ResponseWriter, endpoint string) {
	s.mu.Lock()
	body, ok := s.rest[endpoint]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fmt.Fprint(w, body)
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   any             `json:"error,omitempty"`
}

func (s *Server) answer(req rpcRequest) rpcResponse {
	s.mu.Lock()
	h := s.methods[req.Method]
	s.mu.Unlock()

	rsp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if h == nil {
		rsp.Error = map[string]any{"code": -32601, "message": "Method not found"}
		return rsp
	}
	if result, rpcErr := h(req.Params); rpcErr != nil {
		rsp.Error = rpcErr
	} else {
		rsp.Result = result
	}
	return rsp
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []rpcRequest
		_ = json.Unmarshal(trimmed, &reqs)
		rsps := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			rsps = append(rsps, s.answer(req))
		}
		_ = json.NewEncoder(w).Encode(rsps)
		return
	}

	var req rpcRequest
	_ = json.Unmarshal(body, &req)
	_ = json.NewEncoder(w).Encode(s.answer(req))
}

// Block returns a chain_get_block handler reporting a block at era and height.
func Block(era, height uint64, switchBlock bool) RPCHandler {
	return func(json.RawMessage) (any, map[string]any) {
		header := map[string]any{
			"era_id":    era,
			"height":    height,
			"timestamp": "2026-01-02T03:04:05.000Z",
		}
		if switchBlock {
			header["era_end"] = map[string]any{"era_report": map[string]any{}}
		}
		return map[string]any{
			"api_version": "1.5.6",
			"block": map[string]any{
				"hash":   fmt.Sprintf("%064x", height),
				"header": header,
			},
		}, nil
	}
}

// Record formats one SSE record carrying {"<key>":<payload>}.
func Record(id uint64, key, payload string) string {
	return fmt.Sprintf("id: %d\ndata: {%q:%s}\n\n", id, key, payload)
}

// Handshake is the ApiVersion record a node sends first.
const Handshake = "data: {\"ApiVersion\":\"1.5.6\"}\n\n"
