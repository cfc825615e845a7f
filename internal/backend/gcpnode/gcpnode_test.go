package gcpnode_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"chaintodo/internal/backend/gcpnode"
	"chaintodo/internal/config"
)

const nodeName = "projects/demo/locations/us-central1/blockchainNodes/todo-node"

func nodeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+nodeName {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveEndpoint(t *testing.T) {
	tests := map[string]struct {
		node        string
		status      int
		body        string
		expEndpoint string
		expErr      string
	}{
		"Endpoint without scheme gets https": {
			node:        nodeName,
			status:      http.StatusOK,
			body:        `{"name":"` + nodeName + `","state":"RUNNING","connectionInfo":{"endpointInfo":{"jsonRpcApiEndpoint":"json-rpc.abc123.blockchainnodeengine.com"}}}`,
			expEndpoint: "https://json-rpc.abc123.blockchainnodeengine.com",
		},
		"Endpoint with scheme is kept": {
			node:        "/" + nodeName + "/",
			status:      http.StatusOK,
			body:        `{"state":"RUNNING","connectionInfo":{"endpointInfo":{"jsonRpcApiEndpoint":"http://10.0.0.2:8545"}}}`,
			expEndpoint: "http://10.0.0.2:8545",
		},
		"Node still creating has no endpoint": {
			node:   nodeName,
			status: http.StatusOK,
			body:   `{"state":"CREATING"}`,
			expErr: "state CREATING",
		},
		"Unknown node": {
			node:   nodeName,
			status: http.StatusNotFound,
			body:   `{"error":{"code":404,"message":"not found"}}`,
			expErr: "node not found",
		},
		"Malformed node name is rejected before calling the API": {
			node:   "projects/demo/blockchainNodes/x",
			status: http.StatusOK,
			body:   `{}`,
			expErr: "invalid node name",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := nodeServer(t, tt.status, tt.body)
			r, err := gcpnode.NewResolver(context.Background(),
				option.WithEndpoint(srv.URL+"/"),
				option.WithoutAuthentication(),
			)
			require.NoError(t, err)

			got, err := r.ResolveEndpoint(context.Background(), tt.node)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expEndpoint, got)
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.TokenFile)
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, gcpnode.SaveToken(path, token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := gcpnode.LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, token.Expiry.Equal(got.Expiry))
}

func TestTokenValid(t *testing.T) {
	const oauthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"]}}`

	tests := map[string]struct {
		client string
		token  string
		exp    bool
	}{
		"No files":              {exp: false},
		"Missing oauth client":  {token: `{"access_token":"a","refresh_token":"r","expiry":"2099-01-01T00:00:00Z"}`, exp: false},
		"Corrupt token":         {client: oauthClient, token: `not json`, exp: false},
		"Token without refresh": {client: oauthClient, token: `{"access_token":"expired","token_type":"Bearer"}`, exp: false},
		"Unexpired token":       {client: oauthClient, token: `{"access_token":"a","token_type":"Bearer","refresh_token":"r","expiry":"2099-01-01T00:00:00Z"}`, exp: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{Dir: t.TempDir()}
			if tt.client != "" {
				require.NoError(t, os.WriteFile(cfg.OAuthClientPath(), []byte(tt.client), 0600))
			}
			if tt.token != "" {
				require.NoError(t, os.WriteFile(cfg.TokenPath(), []byte(tt.token), 0600))
			}
			assert.Equal(t, tt.exp, gcpnode.TokenValid(context.Background(), cfg))
		})
	}
}

func TestHTTPClientRequiresCredentials(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}
	_, err := gcpnode.HTTPClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth_client.json")
}

func TestLoginCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var prompt bytes.Buffer
	_, err := gcpnode.Login(ctx, &oauth2.Config{
		ClientID: "test",
		Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: "https://accounts.example.com/token"},
	}, &prompt)
	require.Error(t, err)
	if prompt.Len() > 0 {
		assert.Contains(t, prompt.String(), "https://accounts.example.com/auth")
		assert.Contains(t, prompt.String(), "code_challenge")
	}
}
