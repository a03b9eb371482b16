// Package config loads and validates console service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Gateways  GatewaysConfig  `mapstructure:"gateways"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Diag      DiagConfig      `mapstructure:"diag"`
	Blob      BlobConfig      `mapstructure:"blob"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Branding  BrandingConfig  `mapstructure:"branding"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// RequestTimeout returns the per-request timeout applied to non-streaming routes.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig selects the zap logger profile.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to the console's Postgres database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig locates the Redis instance backing the dashboard cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PlatformConfig locates the subscriber-management core API.
type PlatformConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     uint   `mapstructure:"max_retries"`
}

// Timeout returns the per-call deadline for platform core requests.
func (c PlatformConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GatewayConfig describes one outbound messaging gateway.
type GatewayConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// Timeout returns the per-send deadline for gateway requests.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GatewaysConfig groups the messaging gateways.
type GatewaysConfig struct {
	SMS      GatewayConfig `mapstructure:"sms"`
	WhatsApp GatewayConfig `mapstructure:"whatsapp"`
}

// SMTPConfig configures the email notification channel.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// DiagConfig governs network diagnostics against router agents.
type DiagConfig struct {
	AgentBaseURL          string   `mapstructure:"agent_base_url"`
	AgentTimeoutSeconds   int      `mapstructure:"agent_timeout_seconds"`
	Resolvers             []string `mapstructure:"resolvers"`
	RouterCacheTTLSeconds int      `mapstructure:"router_cache_ttl_seconds"`
}

// AgentTimeout bounds buffered agent calls (traceroute); ping streams
// are unbounded and end with the agent closing the connection.
func (c DiagConfig) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSeconds) * time.Second
}

// RouterCacheTTL is how long router directory entries stay cached.
func (c DiagConfig) RouterCacheTTL() time.Duration {
	return time.Duration(c.RouterCacheTTLSeconds) * time.Second
}

// BlobConfig selects and configures the artifact blob store.
type BlobConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for the audit event publisher.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// JobsConfig sizes the background job pipeline.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
	BatchSize  int `mapstructure:"batch_size"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMS int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMS  int `mapstructure:"sink_timeout_ms"`
}

// MaxBatchWait returns the hub flush interval.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMS) * time.Millisecond
}

// SinkTimeout bounds a single sink delivery.
func (c ProgressConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutMS) * time.Millisecond
}

// BillingConfig tunes invoice PDF rendering.
type BillingConfig struct {
	PDFMaxParallel    int `mapstructure:"pdf_max_parallel"`
	PDFTimeoutSeconds int `mapstructure:"pdf_timeout_seconds"`
}

// PDFTimeout bounds one render.
func (c BillingConfig) PDFTimeout() time.Duration {
	return time.Duration(c.PDFTimeoutSeconds) * time.Second
}

// BrandingConfig governs custom domain verification and SSL status polling.
type BrandingConfig struct {
	EdgeHost     string `mapstructure:"edge_host"`
	IssuerURL    string `mapstructure:"issuer_url"`
	MaxLogoBytes int64  `mapstructure:"max_logo_bytes"`
}

// DashboardConfig tunes the dashboard aggregate cache.
type DashboardConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// CacheTTL is how long dashboard summaries stay cached.
func (c DashboardConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("platform.timeout_seconds", 15)
	v.SetDefault("platform.max_retries", 3)
	v.SetDefault("gateways.sms.timeout_seconds", 10)
	v.SetDefault("gateways.sms.rate_per_second", 10)
	v.SetDefault("gateways.sms.burst", 5)
	v.SetDefault("gateways.whatsapp.timeout_seconds", 10)
	v.SetDefault("gateways.whatsapp.rate_per_second", 10)
	v.SetDefault("gateways.whatsapp.burst", 5)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("diag.agent_timeout_seconds", 20)
	v.SetDefault("diag.resolvers", []string{"1.1.1.1:53", "8.8.8.8:53"})
	v.SetDefault("diag.router_cache_ttl_seconds", 300)
	v.SetDefault("blob.backend", "local")
	v.SetDefault("blob.base_dir", "./data/blobs")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.batch_size", 100)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.max_batch_events", 16)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 2000)
	v.SetDefault("billing.pdf_max_parallel", 1)
	v.SetDefault("billing.pdf_timeout_seconds", 30)
	v.SetDefault("branding.max_logo_bytes", 1<<20)
	v.SetDefault("dashboard.cache_ttl_seconds", 30)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.TimeoutSeconds <= 0 {
		return fmt.Errorf("platform.timeout_seconds must be > 0")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Jobs.QueueDepth <= 0 {
		return fmt.Errorf("jobs.queue_depth must be > 0")
	}
	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("jobs.batch_size must be > 0")
	}
	switch c.Blob.Backend {
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket must be set when blob.backend is gcs")
		}
	case "local":
		if c.Blob.BaseDir == "" {
			return fmt.Errorf("blob.base_dir must be set when blob.backend is local")
		}
	case "memory":
	default:
		return fmt.Errorf("blob.backend must be one of gcs, local, memory")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Diag.AgentBaseURL == "" {
		return fmt.Errorf("diag.agent_base_url is required")
	}
	if len(c.Diag.Resolvers) == 0 {
		return fmt.Errorf("diag.resolvers must list at least one resolver")
	}
	if c.Billing.PDFMaxParallel < 0 {
		return fmt.Errorf("billing.pdf_max_parallel must be >= 0")
	}
	return nil
}
