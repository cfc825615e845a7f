// Package config handles the XDG configuration directory, config.toml and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// AppName is the application directory name.
	AppName = "chaintodo"

	// SettingsFile is the TOML settings filename.
	SettingsFile = "config.toml"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// JournalFile is the default operation journal filename.
	JournalFile = "journal.db"

	// DefaultListenAddr is the default address for serve.
	DefaultListenAddr = "127.0.0.1:8420"
)

// Environment variables overriding config.toml.
const (
	EnvRPCURL           = "RPC_URL"
	EnvContractAddress  = "CONTRACT_ADDRESS"
	EnvPrivateKey       = "PRIVATE_KEY"
	EnvChainID          = "CHAIN_ID"
	EnvKeystore         = "CHAINTODO_KEYSTORE"
	EnvKeystorePassword = "CHAINTODO_KEYSTORE_PASSWORD"
	EnvGCPNode          = "CHAINTODO_GCP_NODE"
)

// RPCOAuth holds client credentials for RPC providers behind OAuth2.
type RPCOAuth struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	TokenURL     string   `toml:"token_url"`
	Scopes       []string `toml:"scopes,omitempty"`
}

// Enabled reports whether client credentials are configured.
func (o RPCOAuth) Enabled() bool {
	return o.ClientID != "" && o.TokenURL != ""
}

// Settings is the content of config.toml after environment overrides.
type Settings struct {
	RPCURL           string   `toml:"rpc_url"`
	ContractAddress  string   `toml:"contract_address"`
	ChainID          int64    `toml:"chain_id,omitempty"`
	PrivateKey       string   `toml:"private_key,omitempty"`
	KeystorePath     string   `toml:"keystore_path,omitempty"`
	KeystorePassword string   `toml:"keystore_password,omitempty"`
	GCPNode          string   `toml:"gcp_node,omitempty"`
	JournalPath      string   `toml:"journal_path,omitempty"`
	ListenAddr       string   `toml:"listen_addr,omitempty"`
	RPCOAuth         RPCOAuth `toml:"rpc_oauth,omitempty"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// LogFormat is "text" or "json".
	LogFormat string

	Settings Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/chaintodo or $HOME/.config/chaintodo.
// Settings are read from config.toml when present, then overridden by a .env
// file in the working directory and by the environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	c := &Config{Dir: dir}

	if err := c.loadSettings(); err != nil {
		return nil, err
	}
	// A missing .env is fine, variables already set win over the file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("invalid .env: %w", err)
	}
	if err := c.Settings.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	c.Settings.normalize(dir)

	return c, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) loadSettings() error {
	b, err := os.ReadFile(c.SettingsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	if err := toml.Unmarshal(b, &c.Settings); err != nil {
		return fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	return nil
}

// SaveSettings writes the settings to config.toml.
func (c *Config) SaveSettings() error {
	if err := c.EnsureDir(); err != nil {
		return err
	}
	b, err := toml.Marshal(c.Settings)
	if err != nil {
		return err
	}
	tmp := c.SettingsPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, c.SettingsPath())
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	for env, dst := range map[string]*string{
		EnvRPCURL:           &s.RPCURL,
		EnvContractAddress:  &s.ContractAddress,
		EnvPrivateKey:       &s.PrivateKey,
		EnvKeystore:         &s.KeystorePath,
		EnvKeystorePassword: &s.KeystorePassword,
		EnvGCPNode:          &s.GCPNode,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}
	if v := getenv(EnvChainID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvChainID, v, err)
		}
		s.ChainID = id
	}
	return nil
}

func (s *Settings) normalize(dir string) {
	s.RPCURL = strings.TrimSpace(s.RPCURL)
	s.ContractAddress = strings.TrimSpace(s.ContractAddress)
	s.PrivateKey = strings.TrimPrefix(strings.TrimSpace(s.PrivateKey), "0x")
	if s.JournalPath == "" {
		s.JournalPath = filepath.Join(dir, JournalFile)
	}
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
}

// SettingsPath returns the path to config.toml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// HasSigner reports whether a private key or keystore is configured.
func (s Settings) HasSigner() bool {
	return s.PrivateKey != "" || s.KeystorePath != ""
}
