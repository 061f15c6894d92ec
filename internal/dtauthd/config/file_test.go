package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
server:
  port: 9090
auth:
  tokenSigningKey: "0123456789abcdef0123456789abcdef"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// File values win over defaults.
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.TokenSigningKey)

	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "devtrack-auth", cfg.Auth.Issuer)
}

func TestLoadFileRejectsNonYAMLExtension(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{}`)

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, ".yaml or .yml")
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFileInvalidConfigFailsValidation(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
auth:
  tokenSigningKey: "too-short"
`)

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "signing key")
}
