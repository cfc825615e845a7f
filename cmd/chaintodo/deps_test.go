package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/config"
	"chaintodo/internal/engine"
	"chaintodo/internal/log"
)

func TestRPCTransport(t *testing.T) {
	tests := map[string]struct {
		settings  config.Settings
		expURL    string
		expClient bool
		expErr    string
	}{
		"Plain RPC": {
			settings: config.Settings{RPCURL: "http://127.0.0.1:8545"},
			expURL:   "http://127.0.0.1:8545",
		},
		"Client credentials": {
			settings: config.Settings{
				RPCURL:   "https://rpc.example.com",
				RPCOAuth: config.RPCOAuth{ClientID: "id", ClientSecret: "secret", TokenURL: "https://auth.example.com/token"},
			},
			expURL:    "https://rpc.example.com",
			expClient: true,
		},
		"GCP node without login": {
			settings: config.Settings{GCPNode: "projects/p/locations/l/blockchainNodes/n"},
			expErr:   "not logged in to Google Cloud (run: chaintodo login)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{Dir: t.TempDir(), Settings: tt.settings}

			url, client, err := rpcTransport(context.Background(), cfg, log.Noop)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expURL, url)
			assert.Equal(t, tt.expClient, client != nil)
		})
	}
}

func TestNewDepsWithoutSigner(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Dir: dir, Settings: config.Settings{
		JournalPath: filepath.Join(dir, "journal.db"),
	}}

	deps, err := newDeps(context.Background(), cfg, log.Noop)
	require.NoError(t, err)
	defer deps.Close()

	// The journal works without a wallet; connecting does not.
	entries, err := deps.Journal.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, cfg.Settings.JournalPath)

	_, err = deps.Engine.Connect(context.Background())
	assert.True(t, errors.Is(err, engine.ErrNoWalletAvailable))

}
