package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.promptshield.dev", cfg.BaseURL)
	assert.Equal(t, AuthSchemeBearer, cfg.AuthScheme)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, DefaultLivenessTTL, cfg.LivenessTTL)
	assert.NotEmpty(t, cfg.SessionPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://staging.promptshield.dev
auth_scheme: token
read_timeout: 2s
audit_log_path: /tmp/audit.jsonl
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.promptshield.dev", cfg.BaseURL)
	assert.Equal(t, AuthSchemeToken, cfg.AuthScheme)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout, "unset values still get defaults")
	assert.Equal(t, "/tmp/audit.jsonl", cfg.AuditLogPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example\n"), 0600))

	t.Setenv("CONSOLE_BASE_URL", "https://env.example")
	t.Setenv("CONSOLE_AUTH_SCHEME", "token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.BaseURL)
	assert.Equal(t, AuthSchemeToken, cfg.AuthScheme)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.promptshield.dev", cfg.BaseURL)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownAuthScheme(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.AuthScheme = "digest"
	assert.Error(t, cfg.Validate())
}
