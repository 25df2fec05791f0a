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
	t.Setenv("HRCHAT_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, TransportHTTP, cfg.Answer.Transport)
	assert.True(t, cfg.LogSink.Enabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowOrigin)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HRCHAT_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("ANSWER_TRANSPORT", "GRPC")
	t.Setenv("ANSWER_GRPC_ADDR", "localhost:50051")
	t.Setenv("ANSWER_TIMEOUT", "15s")
	t.Setenv("LOG_SINK_ENABLED", "off")
	t.Setenv("ALLOW_ORIGIN", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, TransportGRPC, cfg.Answer.Transport)
	assert.Equal(t, 15*time.Second, cfg.Answer.Timeout)
	assert.False(t, cfg.LogSink.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowOrigin)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hrchat.toml")
	content := `
port = "7000"
db_path = "/tmp/file.db"

[answer]
url = "http://answers.test"
timeout = "45s"

[log_sink]
queue_size = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HRCHAT_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port, "env wins over file")
	assert.Equal(t, "/tmp/file.db", cfg.DBPath)
	assert.Equal(t, "http://answers.test", cfg.Answer.URL)
	assert.Equal(t, 45*time.Second, cfg.Answer.Timeout)
	assert.Equal(t, 50, cfg.LogSink.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Identity.Timeout, "unset keys keep defaults")
}

func TestLoad_BadFileDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hrchat.toml")
	require.NoError(t, os.WriteFile(path, []byte("[answer]\ntimeout = \"soon\"\n"), 0o600))
	t.Setenv("HRCHAT_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db", func(c *Config) { c.DBPath = "" }},
		{"unknown transport", func(c *Config) { c.Answer.Transport = "carrier-pigeon" }},
		{"grpc without addr", func(c *Config) { c.Answer.Transport = TransportGRPC }},
		{"zero queue", func(c *Config) { c.LogSink.QueueSize = 0 }},
		{"zero burst", func(c *Config) { c.Auth.RateBurst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
