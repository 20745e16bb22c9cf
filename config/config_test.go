package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frontdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
database:
  path: /var/lib/frontdesk.db
  busy_timeout: 2s
log:
  level: debug
  format: json
engine:
  release_completed_stays: false
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/frontdesk.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, engine.ReleaseCanceled, cfg.ReleasePolicy())
	assert.Equal(t, Default().Server.CORSOrigins, cfg.Server.CORSOrigins, "keys absent from the file keep their defaults")
}

func TestLoad_EnvironmentWins(t *testing.T) {
	// GIVEN: a file setting port 9090
	// WHEN: FRONTDESK_PORT and friends are set
	// THEN: the environment wins
	path := writeFile(t, "server:\n  port: 9090\n")
	t.Setenv("FRONTDESK_PORT", "7000")
	t.Setenv("FRONTDESK_DB_PATH", ":memory:")
	t.Setenv("FRONTDESK_BUSY_TIMEOUT_MS", "250")
	t.Setenv("FRONTDESK_RELEASE_COMPLETED", "false")
	t.Setenv("FRONTDESK_CORS_ORIGINS", "https://desk.example, https://ops.example")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.BusyTimeout)
	assert.False(t, cfg.Engine.ReleaseCompletedStays)
	assert.Equal(t, []string{"https://desk.example", "https://ops.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"bad yaml", "server: [", nil},
		{"port out of range", "server:\n  port: 70000\n", nil},
		{"unknown level", "log:\n  level: loud\n", nil},
		{"unknown format", "log:\n  format: xml\n", nil},
		{"non-numeric port env", "", map[string]string{"FRONTDESK_PORT": "http"}},
		{"non-bool release env", "", map[string]string{"FRONTDESK_RELEASE_COMPLETED": "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.file))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"
	var buf bytes.Buffer

	log := cfg.NewLogger(&buf)
	log.Info("dropped")
	log.Warn("kept", "room", "101")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"room":"101"`)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	assert.Equal(t, engine.ReleaseCanceledAndCompleted, cfg.ReleasePolicy())
	assert.Len(t, cfg.EngineOptions(cfg.NewLogger(&bytes.Buffer{})), 2)
	assert.Equal(t, ":8080", cfg.Addr())
}
