package engine

import (
	"context"
	"fmt"
	"sync"

	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

// Gate acquires and holds the single ledger connection.
type Gate struct {
	wallet ledger.Wallet
	logger log.Logger

	mu      sync.Mutex
	conn    ledger.Connection
	pending *accessRequest
}

// accessRequest is a wallet request shared by every caller that arrives
// while it runs. done is closed once conn and err are set.
type accessRequest struct {
	done chan struct{}
	conn ledger.Connection
	err  error
}

// NewGate returns a gate that acquires connections from wallet.
func NewGate(wallet ledger.Wallet, logger log.Logger) *Gate {
	if logger == nil {
		logger = log.Noop
	}
	return &Gate{wallet: wallet, logger: logger}
}

// Connect returns the current connection, requesting access from the wallet
// only when there is none. Concurrent callers share a single request, and a
// caller whose ctx ends stops waiting without affecting the others.
// The second return value is true when this call established the connection.
func (g *Gate) Connect(ctx context.Context) (ledger.Connection, bool, error) {
	g.mu.Lock()
	if g.conn.Valid() {
		conn := g.conn
		g.mu.Unlock()
		return conn, false, nil
	}
	if g.wallet == nil {
		g.mu.Unlock()
		return ledger.Connection{}, false, ErrNoWalletAvailable
	}
	if req := g.pending; req != nil {
		g.mu.Unlock()
		select {
		case <-req.done:
			return req.conn, false, req.err
		case <-ctx.Done():
			return ledger.Connection{}, false, ctx.Err()
		}
	}
	req := &accessRequest{done: make(chan struct{})}
	g.pending = req
	g.mu.Unlock()

	req.conn, req.err = g.request(ctx)

	g.mu.Lock()
	if req.err == nil {
		g.conn = req.conn
	}
	g.pending = nil
	g.mu.Unlock()
	close(req.done)

	if req.err != nil {
		return ledger.Connection{}, false, req.err
	}
	g.logger.Infof("Connected as %s", req.conn.Address)
	return req.conn, true, nil
}

func (g *Gate) request(ctx context.Context) (ledger.Connection, error) {
	conn, err := g.wallet.RequestAccess(ctx)
	if err != nil {
		return ledger.Connection{}, fmt.Errorf("%w: %w", ErrNoWalletAvailable, err)
	}
	if !conn.Valid() {
		return ledger.Connection{}, fmt.Errorf("%w: wallet returned no handle", ErrNoWalletAvailable)
	}
	return conn, nil
}

// Current returns the held connection, if any.
func (g *Gate) Current() (ledger.Connection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn, g.conn.Valid()
}

// Disconnect forgets the held connection.
func (g *Gate) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = ledger.Connection{}
}
