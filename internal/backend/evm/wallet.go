package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/oauth2/clientcredentials"

	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

// Config is the wallet configuration.
type Config struct {
	RPCURL          string
	ContractAddress string
	// ChainID is queried from the node when zero.
	ChainID int64

	// PrivateKey is a hex key. KeystorePath is used when it is empty.
	PrivateKey       string
	KeystorePath     string
	KeystorePassword string

	// HTTPClient is the RPC transport, e.g. one carrying OAuth2 credentials.
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "evm.Wallet"})
	return nil
}

// OAuthClientConfig holds OAuth2 client credentials for a gated RPC provider.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// OAuthHTTPClient returns an HTTP client that authenticates with the client
// credentials grant and refreshes its token as needed.
func OAuthHTTPClient(ctx context.Context, c OAuthClientConfig) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	return cc.Client(ctx)
}

// Wallet implements ledger.Wallet with a locally held key.
type Wallet struct {
	cfg     Config
	backend Backend
	logger  log.Logger

	mu     sync.Mutex
	client *ethclient.Client
}

// NewWallet returns a wallet that dials cfg.RPCURL on RequestAccess.
func NewWallet(cfg Config) (*Wallet, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Wallet{cfg: cfg, logger: cfg.Logger}, nil
}

// NewWalletWithBackend creates a wallet using backend instead of dialing (for testing).
func NewWalletWithBackend(cfg Config, backend Backend) (*Wallet, error) {
	w, err := NewWallet(cfg)
	if err != nil {
		return nil, err
	}
	w.backend = backend
	return w, nil
}

// RequestAccess loads the signing key, connects to the node and binds the
// contract. Without a configured key it returns ledger.ErrNoWallet.
func (w *Wallet) RequestAccess(ctx context.Context) (ledger.Connection, error) {
	key, err := w.signer()
	if err != nil {
		return ledger.Connection{}, err
	}
	if !common.IsHexAddress(w.cfg.ContractAddress) {
		return ledger.Connection{}, fmt.Errorf("invalid contract address %q", w.cfg.ContractAddress)
	}

	backend, chainID, err := w.connect(ctx)
	if err != nil {
		return ledger.Connection{}, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return ledger.Connection{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	contract, err := NewContract(common.HexToAddress(w.cfg.ContractAddress), backend, auth)
	if err != nil {
		return ledger.Connection{}, err
	}

	w.logger.Debugf("Bound contract %s on chain %s", contract.Address().Hex(), chainID)
	return ledger.Connection{Address: auth.From.Hex(), Handle: contract}, nil
}

func (w *Wallet) connect(ctx context.Context) (Backend, *big.Int, error) {
	backend := w.backend
	if backend == nil {
		if w.cfg.RPCURL == "" {
			return nil, nil, fmt.Errorf("rpc_url is not configured")
		}
		var opts []rpc.ClientOption
		if w.cfg.HTTPClient != nil {
			opts = append(opts, rpc.WithHTTPClient(w.cfg.HTTPClient))
		}
		rc, err := rpc.DialOptions(ctx, w.cfg.RPCURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial %s: %w", w.cfg.RPCURL, err)
		}
		client := ethclient.NewClient(rc)

		w.mu.Lock()
		if w.client != nil {
			w.client.Close()
		}
		w.client = client
		w.mu.Unlock()
		backend = client
	}

	if w.cfg.ChainID != 0 {
		return backend, big.NewInt(w.cfg.ChainID), nil
	}
	reader, ok := backend.(interface {
		ChainID(ctx context.Context) (*big.Int, error)
	})
	if !ok {
		return nil, nil, fmt.Errorf("chain_id is not configured and the backend cannot report it")
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query chain id: %w", wrapError(err))
	}
	return backend, chainID, nil
}

func (w *Wallet) signer() (*ecdsa.PrivateKey, error) {
	switch {
	case w.cfg.PrivateKey != "":
		key, err := crypto.HexToECDSA(w.cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	case w.cfg.KeystorePath != "":
		data, err := os.ReadFile(w.cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore: %w", err)
		}
		k, err := keystore.DecryptKey(data, w.cfg.KeystorePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
		}
		return k.PrivateKey, nil
	default:
		return nil, ledger.ErrNoWallet
	}
}

// Close releases the RPC connection, if one was dialed.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}
