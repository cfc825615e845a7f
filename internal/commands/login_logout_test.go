package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/commands"
	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
)

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoginCommand_NoOAuthClient(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LoginCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.AuthError, code)
	assert.Empty(t, outBuf.String())
	assert.Contains(t, errBuf.String(), "oauth_client.json not found")
	assert.Contains(t, errBuf.String(), "Blockchain Node Engine API")
	assert.Contains(t, errBuf.String(), cfg.OAuthClientPath())
}

func TestLoginCommand_InvalidOAuthClient(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, config.OAuthClientFile, `{"web":`)
	cfg := &config.Config{Dir: dir}

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LoginCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errBuf.String(), "invalid oauth_client.json")
}

// A stored token that cannot be refreshed must not count as logged in.
func TestLoginCommand_UnusableToken(t *testing.T) {
	tests := map[string]string{
		"Corrupt":          `{"access_token":`,
		"No refresh token": `{"access_token":"test","token_type":"Bearer","expiry":"2020-01-01T00:00:00Z"}`,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfigFile(t, dir, config.OAuthClientFile, testOAuthClient)
			writeConfigFile(t, dir, config.TokenFile, token)
			cfg := &config.Config{Dir: dir}

			// Cancelled up front so the flow stops before waiting for the callback.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var outBuf, errBuf bytes.Buffer
			code := (&commands.LoginCmd{}).Run(ctx, cfg, nil, nil, &outBuf, &errBuf)

			assert.Equal(t, exitcode.AuthError, code)
			assert.NotEqual(t, "already logged in\n", outBuf.String())
		})
	}
}

func TestLogoutCommand_OnlyRemovesToken(t *testing.T) {
	dir := t.TempDir()
	oauthPath := writeConfigFile(t, dir, config.OAuthClientFile, testOAuthClient)
	settingsPath := writeConfigFile(t, dir, config.SettingsFile, `rpc_url = "http://127.0.0.1:8545"`)
	tokenPath := writeConfigFile(t, dir, config.TokenFile, `{"access_token":"test","refresh_token":"test"}`)
	cfg := &config.Config{Dir: dir}

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LogoutCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.Success, code)
	assert.Empty(t, errBuf.String())
	assert.Equal(t, "ok\n", outBuf.String())

	assert.NoFileExists(t, tokenPath)
	assert.FileExists(t, oauthPath)
	assert.FileExists(t, settingsPath)
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	tests := map[string]struct {
		quiet     bool
		expStdout string
	}{
		"Default": {expStdout: "not logged in\n"},
		"Quiet":   {quiet: true, expStdout: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{Dir: t.TempDir(), Quiet: tt.quiet}

			var outBuf, errBuf bytes.Buffer
			code := (&commands.LogoutCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

			assert.Equal(t, exitcode.Success, code)
			assert.Empty(t, errBuf.String())
			assert.Equal(t, tt.expStdout, outBuf.String())
		})
	}
}
