package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kataribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: ws
  addr: ":8080"
runtime:
  version: 1
  timeout: 5s
  features: ["binary-events"]
presence:
  endpoints: ["localhost:2379"]
  service_name: echo
  ttl_seconds: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws", cfg.Transport.Kind)
	assert.Equal(t, ":8080", cfg.Transport.Addr)
	assert.Equal(t, 1, cfg.Runtime.Version)
	assert.Equal(t, 5*time.Second, cfg.Runtime.Timeout.Duration)
	assert.Equal(t, []string{"binary-events"}, cfg.Runtime.Feat)
	assert.Equal(t, []string{"localhost:2379"}, cfg.Presence.Endpoints)
	assert.Equal(t, int64(10), cfg.Presence.TTLSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("KATARIBE_ADDR", ":9090")
	path := writeConfig(t, `
transport:
  kind: ws
  addr: "${KATARIBE_ADDR}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Transport.Addr)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "transport: [this is not valid: yaml")
	_, err := Load(path)
	require.Error(t, err)
}
