// Package config loads and validates frisbee configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
)

// ErrUnknownPreset is returned when a preset name is not configured.
var ErrUnknownPreset = errors.New("unknown preset")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig             `mapstructure:"server"`
	Auth    AuthConfig               `mapstructure:"auth"`
	Harvest HarvestConfig            `mapstructure:"harvest"`
	HTTP    HTTPConfig               `mapstructure:"http"`
	Storage StorageConfig            `mapstructure:"storage"`
	DB      DBConfig                 `mapstructure:"db"`
	PubSub  PubSubConfig             `mapstructure:"pubsub"`
	Logging LoggingConfig            `mapstructure:"logging"`
	Presets map[string][]harvest.Job `mapstructure:"presets"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HarvestConfig sizes the worker pool and supplies job defaults.
type HarvestConfig struct {
	Workers       int    `mapstructure:"workers"`
	QueueDepth    int    `mapstructure:"queue_depth"`
	DefaultEngine string `mapstructure:"default_engine"`
	DefaultLimit  int    `mapstructure:"default_limit"`
}

// HTTPConfig configures outbound module requests.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StorageConfig selects where artifacts are written.
type StorageConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Backend   string   `mapstructure:"backend"`
	BaseDir   string   `mapstructure:"base_dir"`
	Prefix    string   `mapstructure:"prefix"`
	GCSBucket string   `mapstructure:"gcs_bucket"`
	S3        S3Config `mapstructure:"s3"`
}

// S3Config holds S3 or S3-compatible connection settings.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// DBConfig controls the optional Postgres outcome sink.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored and existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FRISBEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Keys without a default are invisible to AutomaticEnv during Unmarshal, so
// every key gets one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("harvest.workers", 25)
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("harvest.default_engine", "bing")
	v.SetDefault("harvest.default_limit", 100)
	v.SetDefault("http.timeout_seconds", 3)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("http.max_parallel", 0)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "outcomes")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.QueueDepth < 0 {
		return fmt.Errorf("harvest.queue_depth must be >= 0")
	}
	if c.Harvest.DefaultLimit <= 0 {
		return fmt.Errorf("harvest.default_limit must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxParallel < 0 {
		return fmt.Errorf("http.max_parallel must be >= 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	for _, name := range c.PresetNames() {
		if _, err := c.Preset(name); err != nil {
			return err
		}
	}
	return nil
}

func (s StorageConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	switch s.Backend {
	case BackendLocal:
		if strings.TrimSpace(s.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, memory, gcs, s3", s.Backend)
	}
	return nil
}

// RequestTimeout is the fixed per-request timeout of search modules.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PresetNames lists configured presets sorted.
func (c Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the named job list with engine and limit defaults applied.
func (c Config) Preset(name string) ([]harvest.Job, error) {
	jobs, ok := c.Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	out := make([]harvest.Job, len(jobs))
	for i, job := range jobs {
		out[i] = c.WithDefaults(job)
	}
	if err := harvest.ValidateJobs(out); err != nil {
		return nil, fmt.Errorf("presets.%s: %w", name, err)
	}
	return out, nil
}

// WithDefaults fills a missing engine or limit from the harvest section.
func (c Config) WithDefaults(job harvest.Job) harvest.Job {
	if strings.TrimSpace(job.Engine) == "" {
		job.Engine = c.Harvest.DefaultEngine
	}
	if job.Limit == 0 {
		job.Limit = c.Harvest.DefaultLimit
	}
	return job
}
