// Package rpc is a minimal JSON-RPC client for the node's /rpc surface. It
// covers the block and info queries the awaiters and the CLI need; wider
// endpoint coverage lives elsewhere.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/types"
)

// Method names.
const (
	MethodChainGetBlock = "chain_get_block"
	MethodInfoGetStatus = "info_get_status"
	MethodInfoGetPeers  = "info_get_peers"
	MethodDiscover      = "rpc.discover"
)

// Error is a JSON-RPC error object returned by the node.
type Error = jrpc2.Error

// Client issues JSON-RPC calls against a node. It is safe for concurrent use.
type Client struct {
	url  string
	conn *node.Connection

	mu        sync.RWMutex
	cli       *jrpc2.Client
	transport *failureTransport
}

// NewClient creates a client for conn's RPC endpoint using conn's HTTP client.
func NewClient(conn *node.Connection) *Client {
	c := &Client{url: conn.RPCURL(), conn: conn}
	c.refresh()
	return c
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Close releases the underlying channel.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cli.Close()
}

// refresh replaces the jrpc2 client. A jrpc2 client is unusable after its
// channel fails, so every transport error triggers a refresh.
func (c *Client) refresh() {
	httpClient, transport := recordingClient(c.conn.HTTPClient())
	ch := jhttp.NewChannel(c.url, &jhttp.ChannelOptions{Client: httpClient})
	cli := jrpc2.NewClient(ch, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != nil {
		c.cli.Close()
	}
	c.cli = cli
	c.transport = transport
}

// Call invokes method with params and decodes the result into out. Node
// errors are returned as *Error; transport failures wrap node.ErrConnection.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.RLock()
	err := c.cli.CallResult(ctx, method, params, out)
	transport := c.transport
	c.mu.RUnlock()
	if err == nil {
		return nil
	}

	var rpcErr *jrpc2.Error
	if transportErr := transport.take(); transportErr != nil {
		err = transportErr
	} else if errors.As(err, &rpcErr) {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}

	c.refresh()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: rpc %s: %w", node.ErrConnection, method, err)
}

// BlockID identifies a block by hash or height. The zero value means the
// latest block.
type BlockID struct {
	Hash   string
	Height *uint64
}

// BlockByHash identifies a block by its hex hash.
func BlockByHash(hash string) BlockID {
	return BlockID{Hash: hash}
}

// BlockByHeight identifies a block by height.
func BlockByHeight(height uint64) BlockID {
	return BlockID{Height: &height}
}

func (id BlockID) params() any {
	switch {
	case id.Hash != "":
		return map[string]any{"block_identifier": map[string]any{"Hash": id.Hash}}
	case id.Height != nil:
		return map[string]any{"block_identifier": map[string]any{"Height": *id.Height}}
	default:
		return nil
	}
}

type getBlockResult struct {
	APIVersion string       `json:"api_version"`
	Block      *types.Block `json:"block"`
}

// ChainGetBlock returns the identified block.
func (c *Client) ChainGetBlock(ctx context.Context, id BlockID) (*types.Block, error) {
	var result getBlockResult
	if err := c.Call(ctx, MethodChainGetBlock, id.params(), &result); err != nil {
		return nil, err
	}
	if result.Block == nil {
		return nil, fmt.Errorf("rpc: %s: %w", MethodChainGetBlock, ErrNoBlock)
	}
	return result.Block, nil
}

// LatestBlock returns the node's most recent finalised block.
func (c *Client) LatestBlock(ctx context.Context) (*types.Block, error) {
	return c.ChainGetBlock(ctx, BlockID{})
}

// GetChainHeights returns the era and block height of the latest block.
func (c *Client) GetChainHeights(ctx context.Context) (types.ChainHeights, error) {
	block, err := c.LatestBlock(ctx)
	if err != nil {
		return types.ChainHeights{}, err
	}
	return block.Heights(), nil
}

// InfoGetStatus returns the node status.
func (c *Client) InfoGetStatus(ctx context.Context) (*types.NodeStatus, error) {
	var status types.NodeStatus
	if err := c.Call(ctx, MethodInfoGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type getPeersResult struct {
	Peers []types.Peer `json:"peers"`
}

// InfoGetPeers returns the node's peers.
func (c *Client) InfoGetPeers(ctx context.Context) ([]types.Peer, error) {
	var result getPeersResult
	if err := c.Call(ctx, MethodInfoGetPeers, nil, &result); err != nil {
		return nil, err
	}
	return result.Peers, nil
}

type discoverResult struct {
	Schema types.RPCSchema `json:"schema"`
}

// Discover returns the node's OpenRPC schema.
func (c *Client) Discover(ctx context.Context) (*types.RPCSchema, error) {
	var result discoverResult
	if err := c.Call(ctx, MethodDiscover, nil, &result); err != nil {
		return nil, err
	}
	return &result.Schema, nil
}
