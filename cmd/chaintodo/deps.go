package main

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"chaintodo/internal/backend/evm"
	"chaintodo/internal/backend/gcpnode"
	"chaintodo/internal/commands"
	"chaintodo/internal/config"
	"chaintodo/internal/engine"
	"chaintodo/internal/journal/sqlite"
	"chaintodo/internal/log"
)

// newDeps wires the EVM wallet, the SQLite journal and the engine.
func newDeps(ctx context.Context, cfg *config.Config, logger log.Logger) (*commands.Deps, error) {
	s := cfg.Settings
	deps := &commands.Deps{Logger: logger}

	rpcURL, httpClient, err := rpcTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	wallet, err := evm.NewWallet(evm.Config{
		RPCURL:           rpcURL,
		ContractAddress:  s.ContractAddress,
		ChainID:          s.ChainID,
		PrivateKey:       s.PrivateKey,
		KeystorePath:     s.KeystorePath,
		KeystorePassword: s.KeystorePassword,
		HTTPClient:       httpClient,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create wallet: %w", err)
	}
	deps.OnClose(wallet.Close)

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: s.JournalPath,
		Logger: logger,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("could not open journal: %w", err)
	}
	deps.OnClose(func() {
		if err := repo.Close(); err != nil {
			logger.Warningf("Could not close journal: %s", err)
		}
	})

	e, err := engine.New(engine.Config{
		Wallet:  wallet,
		Journal: repo,
		Logger:  logger,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	deps.Engine = e
	deps.Journal = repo
	return deps, nil
}

// rpcTransport returns the RPC URL and the HTTP client to reach it. A
// Blockchain Node Engine node uses the stored Google token, and its
// endpoint is resolved when no rpc_url is set. Other gated providers use
// OAuth2 client credentials.
func rpcTransport(ctx context.Context, cfg *config.Config, logger log.Logger) (string, *http.Client, error) {
	s := cfg.Settings

	switch {
	case s.GCPNode != "":
		if !cfg.HasToken() {
			return "", nil, fmt.Errorf("not logged in to Google Cloud (run: %s login)", config.AppName)
		}
		client, err := gcpnode.HTTPClient(ctx, cfg)
		if err != nil {
			return "", nil, fmt.Errorf("gcp auth: %w", err)
		}
		if s.RPCURL != "" {
			return s.RPCURL, client, nil
		}

		resolver, err := gcpnode.NewResolver(ctx, option.WithHTTPClient(client))
		if err != nil {
			return "", nil, err
		}
		url, err := resolver.ResolveEndpoint(ctx, s.GCPNode)
		if err != nil {
			return "", nil, fmt.Errorf("could not resolve node endpoint: %w", err)
		}
		logger.Debugf("Resolved %s to %s", s.GCPNode, url)
		return url, client, nil

	case s.RPCOAuth.Enabled():
		client := evm.OAuthHTTPClient(ctx, evm.OAuthClientConfig{
			ClientID:     s.RPCOAuth.ClientID,
			ClientSecret: s.RPCOAuth.ClientSecret,
			TokenURL:     s.RPCOAuth.TokenURL,
			Scopes:       s.RPCOAuth.Scopes,
		})
		return s.RPCURL, client, nil

	default:
		return s.RPCURL, nil, nil
	}
}
