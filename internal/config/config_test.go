package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Harvest.Workers)
	assert.Equal(t, 64, cfg.Harvest.QueueDepth)
	assert.Equal(t, "bing", cfg.Harvest.DefaultEngine)
	assert.Equal(t, 100, cfg.Harvest.DefaultLimit)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 1, cfg.HTTP.RateLimitBurst)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "outcomes", cfg.DB.Table)
	assert.True(t, cfg.Logging.Development)
	assert.Empty(t, cfg.PresetNames())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
harvest:
  workers: 8
  queue_depth: 16
  default_limit: 50
http:
  timeout_seconds: 5
  user_agent: frisbee-test
  max_parallel: 4
  rate_limit_rps: 2.5
storage:
  enabled: true
  backend: s3
  prefix: runs
  s3:
    endpoint: localhost:9000
    bucket: leads
    use_ssl: false
logging:
  development: false
presets:
  competitors:
    - domain: a.com
      greedy: true
    - engine: bing
      domain: b.com
      modifier: sales
      limit: 20
      fuzzy: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 8, cfg.Harvest.Workers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.InDelta(t, 2.5, cfg.HTTP.RateLimitRPS, 0.001)
	assert.Equal(t, "leads", cfg.Storage.S3.Bucket)
	assert.False(t, cfg.Storage.S3.UseSSL)
	assert.False(t, cfg.Logging.Development)

	jobs, err := cfg.Preset("competitors")
	require.NoError(t, err)
	assert.Equal(t, []harvest.Job{
		{Engine: "bing", Domain: "a.com", Limit: 50, Greedy: true},
		{Engine: "bing", Domain: "b.com", Modifier: "sales", Limit: 20, Fuzzy: true},
	}, jobs)
	assert.Equal(t, []string{"competitors"}, cfg.PresetNames())

	_, err = cfg.Preset("missing")
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FRISBEE_HARVEST_WORKERS", "3")
	t.Setenv("FRISBEE_STORAGE_S3_REGION", "eu-west-1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Harvest.Workers)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FRISBEE_SERVER_PORT=7070\n"), 0o600))
	t.Setenv("FRISBEE_SERVER_PORT", "")
	require.NoError(t, os.Unsetenv("FRISBEE_SERVER_PORT"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Harvest: HarvestConfig{Workers: 1, DefaultEngine: "bing", DefaultLimit: 10},
		HTTP:    HTTPConfig{TimeoutSeconds: 3},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"no workers", func(c *Config) { c.Harvest.Workers = 0 }, "harvest.workers"},
		{"bad default limit", func(c *Config) { c.Harvest.DefaultLimit = 0 }, "harvest.default_limit"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative parallelism", func(c *Config) { c.HTTP.MaxParallel = -1 }, "http.max_parallel"},
		{"unknown backend", func(c *Config) { c.Storage = StorageConfig{Enabled: true, Backend: "ftp"} }, "storage.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage = StorageConfig{Enabled: true, Backend: BackendGCS} }, "storage.gcs_bucket"},
		{"s3 without bucket", func(c *Config) { c.Storage = StorageConfig{Enabled: true, Backend: BackendS3} }, "storage.s3.bucket"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "outcomes" }, "pubsub.project_id"},
		{"project without topic", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub.topic_name"},
		{"invalid preset", func(c *Config) {
			c.Presets = map[string][]harvest.Job{"broken": {{Engine: "bing"}}}
		}, "presets.broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
