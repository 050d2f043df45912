// Package rest reads the node's REST surface: status, metrics, the RPC
// schema, validator changes and the chainspec.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/papercomputeco/cspr/pkg/types"
)

// Endpoints.
const (
	EndpointStatus           = "status"
	EndpointMetrics          = "metrics"
	EndpointRPCSchema        = "rpc-schema"
	EndpointValidatorChanges = "validator-changes"
	EndpointChainspec        = "chainspec"
)

// ErrEndpointNotFound is returned by GetRPCEndpoint for unknown methods.
var ErrEndpointNotFound = errors.New("rpc endpoint not found")

// Getter issues a GET against a REST endpoint. *node.Connection satisfies it.
type Getter interface {
	RESTGet(ctx context.Context, endpoint string) ([]byte, error)
}

// Client reads the REST surface through a Getter.
type Client struct {
	getter Getter
}

// NewClient creates a REST client.
func NewClient(g Getter) *Client {
	return &Client{getter: g}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.getter.RESTGet(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("rest: decode %s: %w", endpoint, err)
	}
	return nil
}

// GetNodeStatus returns the node status.
func (c *Client) GetNodeStatus(ctx context.Context) (*types.NodeStatus, error) {
	var status types.NodeStatus
	if err := c.getJSON(ctx, EndpointStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetNodeMetrics returns the node's metric lines, sorted, with comment
// lines dropped.
func (c *Client) GetNodeMetrics(ctx context.Context) ([]string, error) {
	body, err := c.getter.RESTGet(ctx, EndpointMetrics)
	if err != nil {
		return nil, err
	}

	var metrics []string
	for line := range strings.SplitSeq(string(body), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		metrics = append(metrics, line)
	}
	slices.Sort(metrics)
	return metrics, nil
}

// GetNodeMetric returns the metric lines whose name starts with prefix,
// compared case-insensitively.
func (c *Client) GetNodeMetric(ctx context.Context, prefix string) ([]string, error) {
	metrics, err := c.GetNodeMetrics(ctx)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	matched := []string{}
	for _, m := range metrics {
		if strings.HasPrefix(strings.ToLower(m), prefix) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// GetRPCSchema returns the node's OpenRPC schema.
func (c *Client) GetRPCSchema(ctx context.Context) (*types.RPCSchema, error) {
	var schema types.RPCSchema
	if err := c.getJSON(ctx, EndpointRPCSchema, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

type methodName struct {
	Name string `json:"name"`
}

// GetRPCEndpoints returns the sorted names of the node's RPC methods.
func (c *Client) GetRPCEndpoints(ctx context.Context) ([]string, error) {
	schema, err := c.GetRPCSchema(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schema.Methods))
	for _, m := range schema.Methods {
		var n methodName
		if err := json.Unmarshal(m, &n); err != nil {
			return nil, fmt.Errorf("rest: decode rpc method: %w", err)
		}
		names = append(names, n.Name)
	}
	slices.Sort(names)
	return names, nil
}

// GetRPCEndpoint returns the schema fragment of one RPC method, matched
// case-insensitively.
func (c *Client) GetRPCEndpoint(ctx context.Context, name string) (json.RawMessage, error) {
	schema, err := c.GetRPCSchema(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range schema.Methods {
		var n methodName
		if err := json.Unmarshal(m, &n); err != nil {
			return nil, fmt.Errorf("rest: decode rpc method: %w", err)
		}
		if strings.EqualFold(n.Name, name) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, name)
}

// GetValidatorChanges returns recent validator status changes.
func (c *Client) GetValidatorChanges(ctx context.Context) ([]types.ValidatorChange, error) {
	var changes []types.ValidatorChange
	if err := c.getJSON(ctx, EndpointValidatorChanges, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// GetChainspec returns the node's chainspec documents.
func (c *Client) GetChainspec(ctx context.Context) (*types.Chainspec, error) {
	var spec types.Chainspec
	if err := c.getJSON(ctx, EndpointChainspec, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}
