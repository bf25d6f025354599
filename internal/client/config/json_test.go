package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv(EnvConfigPath, "")

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"server_endpoint_addr": "www.example:9000",
		"request_timeout":      "10s",
		"presign_expiry":       "5m",
		"revision_concurrency": 4,
		"s3_base_endpoint":     "http://minio:9000",
	})
	pathEnv := writeTempJSON(t, dir, "env.json", map[string]any{
		"database_dsn": "env.db",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.ServerEndpointAddr)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 5*time.Minute, cfg.PresignExpiry)
		assert.Equal(t, 4, cfg.RevisionConcurrency)
		assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
	})

	t.Run("falls back to GOPHDRIVE_CONFIG", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv(EnvConfigPath, pathEnv)

		cfg := &Config{PageSize: 50}
		parseJson(cfg)

		assert.Equal(t, "env.db", cfg.DatabaseDSN)
		assert.Equal(t, 50, cfg.PageSize, "absent keys keep previous values")
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			ServerEndpointAddr: "defaults:1234",
			RequestTimeout:     42 * time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
		assert.Equal(t, 42*time.Second, cfg.RequestTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		require.Panics(t, func() { parseJson(&Config{}) })
	})
}

func Test_parseEnv(t *testing.T) {
	t.Setenv(EnvAccessToken, "a")
	t.Setenv(EnvRefreshToken, "")
	t.Setenv(EnvS3RootUser, "minio")
	t.Setenv(EnvS3RootPassword, "secret")

	cfg := &Config{RefreshToken: "keep"}
	parseEnv(cfg)

	assert.Equal(t, "a", cfg.AccessToken)
	assert.Equal(t, "keep", cfg.RefreshToken)
	assert.Equal(t, "minio", cfg.S3RootUser)
	assert.Equal(t, "secret", cfg.S3RootPassword)
}
