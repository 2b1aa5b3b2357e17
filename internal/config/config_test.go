package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, DefaultDatasetPath, cfg.Dataset.Path)
	assert.Equal(t, 20, cfg.Dataset.DefaultTopN)
	assert.Equal(t, "monthly", cfg.Dataset.DefaultMode)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
}

func TestLoadFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  read_timeout: 5s
dataset:
  path: /srv/exports/stock.xlsx
  default_top_n: 10
  default_mode: weekly
logging:
  level: debug
`), 0o644))

	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "file overrides defaults",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, "/srv/exports/stock.xlsx", cfg.Dataset.Path)
				assert.Equal(t, 10, cfg.Dataset.DefaultTopN)
				assert.Equal(t, "weekly", cfg.Dataset.DefaultMode)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
		{
			name: "env overrides file",
			env: map[string]string{
				"PHARMSTOCK_SERVER_PORT":                 "7070",
				"PHARMSTOCK_DATASET_PATH":                "/tmp/other.csv",
				"PHARMSTOCK_DATASET_DEFAULT_TOP_N":       "30",
				"PHARMSTOCK_SECURITY_RATE_LIMIT_ENABLED": "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "/tmp/other.csv", cfg.Dataset.Path)
				assert.Equal(t, 30, cfg.Dataset.DefaultTopN)
				assert.False(t, cfg.Security.RateLimit.Enabled)
			},
		},
		{
			name: "env list values",
			env: map[string]string{
				"PHARMSTOCK_SECURITY_ALLOWED_ORIGINS": "http://a.example,http://b.example",
				"PHARMSTOCK_TELEMETRY_TRACE_EXPORTER": "stdout",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFile(path)
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadIgnoresUnprefixedVariables(t *testing.T) {
	t.Setenv("PORT", "1234")
	t.Setenv("PATH", os.Getenv("PATH"))

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultDatasetPath, cfg.Dataset.Path)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("dataset:\n  default_top_n: 99\n"), 0o644))
	_, err = LoadFile(invalid)
	assert.ErrorContains(t, err, "top-n")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read timeout"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = -time.Second }, "request timeout"},
		{"cors without origins", func(c *Config) { c.Security.AllowedOrigins = nil }, "allowed origin"},
		{"rate limit", func(c *Config) { c.Security.RateLimit.RPS = 0 }, "rate limit"},
		{"empty dataset", func(c *Config) { c.Dataset.Path = "  " }, "dataset path"},
		{"top-n low", func(c *Config) { c.Dataset.DefaultTopN = 4 }, "top-n"},
		{"top-n high", func(c *Config) { c.Dataset.DefaultTopN = 51 }, "top-n"},
		{"mode", func(c *Config) { c.Dataset.DefaultMode = "yearly" }, "default mode"},
		{"logging output", func(c *Config) { c.Logging.Output = "syslog" }, "logging output"},
		{"trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }, "trace exporter"},
		{"metric exporter", func(c *Config) { c.Telemetry.MetricExporter = "otlp" }, "metric exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateNormalisesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "FILE"
	cfg.Logging.FilePath = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.Logging.Output)
	assert.Equal(t, DefaultLogFile, cfg.Logging.FilePath)
}

func TestGetConfigFilePath(t *testing.T) {
	t.Setenv("PHARMSTOCK_CONFIG", "/etc/pharmstock.yaml")
	assert.Equal(t, "/etc/pharmstock.yaml", getConfigFilePath())
}
