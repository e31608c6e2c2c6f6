package provider

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Node is a provider backed by a JSON-RPC endpoint that manages its own
// accounts, such as a local development node.
type Node struct {
	client *rpc.Client
}

// Dial connects to the JSON-RPC endpoint at the specified url.
func Dial(ctx context.Context, url string) (*Node, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	return NewNode(client), nil
}

// NewNode constructs a provider for an existing RPC client.
func NewNode(client *rpc.Client) *Node {
	return &Node{
		client: client,
	}
}

// Client returns the underlying RPC client.
func (n *Node) Client() *rpc.Client {
	return n.client
}

// Request implements the Provider interface. Endpoints that do not
// implement eth_requestAccounts are answered with eth_accounts.
func (n *Node) Request(ctx context.Context, result any, method string, params ...any) error {
	err := n.client.CallContext(ctx, result, method, params...)
	if err == nil || method != MethodRequestAccounts {
		return err
	}

	if code, ok := ErrorCode(err); ok && code == CodeMethodNotFound {
		return n.client.CallContext(ctx, result, MethodAccounts)
	}

	return err
}

// Close releases the connection to the endpoint.
func (n *Node) Close() {
	n.client.Close()
}
