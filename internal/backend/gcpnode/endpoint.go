package gcpnode

import (
	"context"
	"fmt"
	"strings"
	"time"

	blockchainnodeengine "google.golang.org/api/blockchainnodeengine/v1"
	"google.golang.org/api/option"
)

// APITimeout is the timeout for Node Engine API calls.
const APITimeout = 10 * time.Second

// Resolver looks up Blockchain Node Engine nodes.
type Resolver struct {
	svc *blockchainnodeengine.Service
}

// NewResolver creates a resolver. Pass option.WithHTTPClient with an
// authorized client, or any other client option.
func NewResolver(ctx context.Context, opts ...option.ClientOption) (*Resolver, error) {
	svc, err := blockchainnodeengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create node engine service: %w", err)
	}
	return &Resolver{svc: svc}, nil
}

// ResolveEndpoint returns the JSON-RPC URL of node, given as
// projects/<p>/locations/<l>/blockchainNodes/<n>.
func (r *Resolver) ResolveEndpoint(ctx context.Context, node string) (string, error) {
	node = strings.Trim(strings.TrimSpace(node), "/")
	if !validNodeName(node) {
		return "", fmt.Errorf("invalid node name %q (want projects/<p>/locations/<l>/blockchainNodes/<n>)", node)
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	n, err := r.svc.Projects.Locations.BlockchainNodes.Get(node).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	if n.ConnectionInfo == nil || n.ConnectionInfo.EndpointInfo == nil || n.ConnectionInfo.EndpointInfo.JsonRpcApiEndpoint == "" {
		return "", fmt.Errorf("node %s has no JSON-RPC endpoint (state %s)", node, n.State)
	}

	endpoint := n.ConnectionInfo.EndpointInfo.JsonRpcApiEndpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return endpoint, nil
}

func validNodeName(name string) bool {
	parts := strings.Split(name, "/")
	return len(parts) == 6 &&
		parts[0] == "projects" && parts[1] != "" &&
		parts[2] == "locations" && parts[3] != "" &&
		parts[4] == "blockchainNodes" && parts[5] != ""
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	errStr := err.Error()

	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out")
	}
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("token expired or revoked (run: chaintodo login)")
	}
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("node not found")
	}
	return err
}
