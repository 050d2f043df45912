package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/rpc"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   any             `json:"error,omitempty"`
}

// fakeNode answers JSON-RPC calls from a method table and records params.
type fakeNode struct {
	mu      sync.Mutex
	methods map[string]func(params json.RawMessage) (any, map[string]any)
	calls   []rpcRequest
}

func (f *fakeNode) answer(req rpcRequest) rpcResponse {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.methods[req.Method]
	f.mu.Unlock()

	rsp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if fn == nil {
		rsp.Error = map[string]any{"code": -32601, "message": "Method not found"}
		return rsp
	}
	result, rpcErr := fn(req.Params)
	if rpcErr != nil {
		rsp.Error = rpcErr
	} else {
		rsp.Result = result
	}
	return rsp
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []rpcRequest
		_ = json.Unmarshal(trimmed, &reqs)
		rsps := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			rsps = append(rsps, f.answer(req))
		}
		_ = json.NewEncoder(w).Encode(rsps)
		return
	}

	var req rpcRequest
	_ = json.Unmarshal(body, &req)
	_ = json.NewEncoder(w).Encode(f.answer(req))
}

func (f *fakeNode) set(method string, fn func(json.RawMessage) (any, map[string]any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[method] = fn
}

func (f *fakeNode) lastParams() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return string(f.calls[len(f.calls)-1].Params)
}

func block(era, height uint64, switchBlock bool) map[string]any {
	header := map[string]any{
		"era_id":    era,
		"height":    height,
		"era_end":   nil,
		"timestamp": "2024-03-01T10:00:00.000Z",
	}
	if switchBlock {
		header["era_end"] = map[string]any{"era_report": map[string]any{}}
	}
	return map[string]any{"hash": "abc" + strconv.FormatUint(height, 10), "header": header}
}

func connectionFor(server *httptest.Server) *node.Connection {
	u, err := url.Parse(server.URL)
	Expect(err).NotTo(HaveOccurred())
	host, portStr, err := net.SplitHostPort(u.Host)
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.ParseUint(portStr, 10, 64)
	Expect(err).NotTo(HaveOccurred())
	return node.New(host, node.WithPortRPC(uint(port)))
}

// flakyTransport fails the first n requests with a dial error.
type flakyTransport struct {
	mu sync.Mutex
	n  int
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	fail := t.n > 0
	if fail {
		t.n--
	}
	t.mu.Unlock()

	if fail {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return http.DefaultTransport.RoundTrip(req)
}

var _ = Describe("Client", func() {
	var (
		fake   *fakeNode
		server *httptest.Server
		client *rpc.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeNode{methods: map[string]func(json.RawMessage) (any, map[string]any){
			rpc.MethodChainGetBlock: func(json.RawMessage) (any, map[string]any) {
				return map[string]any{"api_version": "1.5.6", "block": block(12, 345, false)}, nil
			},
			rpc.MethodInfoGetPeers: func(json.RawMessage) (any, map[string]any) {
				return map[string]any{"peers": []map[string]any{{"node_id": "tls:1", "address": "10.0.0.1:35000"}}}, nil
			},
			rpc.MethodInfoGetStatus: func(json.RawMessage) (any, map[string]any) {
				return map[string]any{"api_version": "1.5.6", "chainspec_name": "casper-net-1", "reactor_state": "Validate"}, nil
			},
			rpc.MethodDiscover: func(json.RawMessage) (any, map[string]any) {
				return map[string]any{"schema": map[string]any{"openrpc": "1.0.0-rc1", "methods": []map[string]any{{"name": "chain_get_block"}}}}, nil
			},
		}}
		server = httptest.NewServer(fake)
		client = rpc.NewClient(connectionFor(server))
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	It("posts to the /rpc endpoint", func() {
		Expect(client.URL()).To(HaveSuffix("/rpc"))
	})

	It("fetches the latest block without params", func() {
		b, err := client.LatestBlock(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Header.Height).To(Equal(uint64(345)))
		Expect(b.Header.EraID).To(Equal(uint64(12)))
		Expect(b.IsSwitchBlock()).To(BeFalse())
		Expect(fake.lastParams()).To(BeEmpty())
	})

	It("identifies blocks by height and hash", func() {
		_, err := client.ChainGetBlock(ctx, rpc.BlockByHeight(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.lastParams()).To(MatchJSON(`{"block_identifier":{"Height":10}}`))

		_, err = client.ChainGetBlock(ctx, rpc.BlockByHash("ff00"))
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.lastParams()).To(MatchJSON(`{"block_identifier":{"Hash":"ff00"}}`))
	})

	It("derives chain heights from the latest block", func() {
		h, err := client.GetChainHeights(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Era).To(Equal(uint64(12)))
		Expect(h.Block).To(Equal(uint64(345)))
	})

	It("fails when the response carries no block", func() {
		fake.set(rpc.MethodChainGetBlock, func(json.RawMessage) (any, map[string]any) {
			return map[string]any{"api_version": "1.5.6"}, nil
		})
		_, err := client.LatestBlock(ctx)
		Expect(err).To(MatchError(rpc.ErrNoBlock))
	})

	It("returns node errors as *rpc.Error", func() {
		fake.set(rpc.MethodChainGetBlock, func(json.RawMessage) (any, map[string]any) {
			return nil, map[string]any{"code": -32001, "message": "block not known"}
		})
		_, err := client.LatestBlock(ctx)

		var rpcErr *rpc.Error
		Expect(errors.As(err, &rpcErr)).To(BeTrue())
		Expect(rpcErr.Message).To(Equal("block not known"))
		Expect(err).NotTo(MatchError(node.ErrConnection))
	})

	It("reads status, peers and schema", func() {
		status, err := client.InfoGetStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.ChainspecName).To(Equal("casper-net-1"))
		Expect(string(status.Raw)).To(ContainSubstring("reactor_state"))

		peers, err := client.InfoGetPeers(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(peers).To(HaveLen(1))
		Expect(peers[0].Address).To(Equal("10.0.0.1:35000"))

		schema, err := client.Discover(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(schema.Methods).To(HaveLen(1))
	})

	It("tells transport failures from node errors on the same client", func() {
		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		host, portStr, err := net.SplitHostPort(u.Host)
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.ParseUint(portStr, 10, 64)
		Expect(err).NotTo(HaveOccurred())

		flaky := rpc.NewClient(node.New(host,
			node.WithPortRPC(uint(port)),
			node.WithHTTPClient(&http.Client{Transport: &flakyTransport{n: 1}}),
		))
		defer flaky.Close()

		_, err = flaky.LatestBlock(ctx)
		Expect(err).To(MatchError(node.ErrConnection))
		var rpcErr *rpc.Error
		Expect(errors.As(err, &rpcErr)).To(BeFalse())

		fake.set(rpc.MethodChainGetBlock, func(json.RawMessage) (any, map[string]any) {
			return nil, map[string]any{"code": -32603, "message": "internal"}
		})
		_, err = flaky.LatestBlock(ctx)
		Expect(errors.As(err, &rpcErr)).To(BeTrue())
		Expect(err).NotTo(MatchError(node.ErrConnection))

		fake.set(rpc.MethodChainGetBlock, func(json.RawMessage) (any, map[string]any) {
			return map[string]any{"api_version": "1.5.6", "block": block(12, 346, false)}, nil
		})
		b, err := flaky.LatestBlock(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Header.Height).To(Equal(uint64(346)))
	})

	It("wraps transport failures as ErrConnection and recovers", func() {
		broken := rpc.NewClient(node.New("127.0.0.1", node.WithPortRPC(1)))
		defer broken.Close()

		_, err := broken.LatestBlock(ctx)
		Expect(err).To(MatchError(node.ErrConnection))

		_, err = broken.LatestBlock(ctx)
		Expect(err).To(MatchError(node.ErrConnection))
	})
})
