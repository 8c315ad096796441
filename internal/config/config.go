package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Quota     QuotaConfig
	Baseline  BaselineConfig
	Anomaly   AnomalyConfig
	Alerting  AlertingConfig
	Retention RetentionConfig
	Worker    WorkerConfig
	Log       LogConfig
	Sentry    SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Env  string `mapstructure:"env" validate:"oneof=development test production"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns" validate:"min=1"`
	MinConns int32  `mapstructure:"min_conns" validate:"min=0"`
}

// RedisConfig holds Redis configuration. Redis backs the daily quota
// counter, the semantic-score cache, and the task queue broker.
type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

// Addr returns the host:port address of the Redis server
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds ingestion and query authentication configuration
type AuthConfig struct {
	// APIKeys are static bearer tokens accepted on the ingest and query
	// surface. Comma-separated in the environment.
	APIKeys []string `mapstructure:"api_keys"`
	// JWTSecret signs dashboard session tokens. Either auth form is accepted.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// QuotaConfig holds daily ingestion quota configuration
type QuotaConfig struct {
	Enabled         bool  `mapstructure:"enabled"`
	DailyTraceLimit int64 `mapstructure:"daily_trace_limit" validate:"min=1"`
}

// BaselineConfig holds cost baseline computation configuration
type BaselineConfig struct {
	MinSamples int `mapstructure:"min_samples" validate:"min=1"`
	MaxSamples int `mapstructure:"max_samples" validate:"min=1"`
	// LookbackHours bounds the endpoint discovery window for a sweep.
	LookbackHours int `mapstructure:"lookback_hours" validate:"min=1"`
}

// AnomalyConfig holds anomaly detection configuration
type AnomalyConfig struct {
	// CostSpikeThresholdPercent fires a cost spike when a trace's cost
	// strictly exceeds baseline * (1 + threshold/100).
	CostSpikeThresholdPercent float64 `mapstructure:"cost_spike_threshold_percent" validate:"gt=0"`
	// CostBaselinePercentile selects the comparison point: "p50" or "p95".
	CostBaselinePercentile string `mapstructure:"cost_baseline_percentile" validate:"oneof=p50 p95"`
	// QualityThreshold is the similarity score below which a quality drop fires.
	QualityThreshold float64 `mapstructure:"quality_threshold" validate:"gte=0,lte=1"`
	// QualityAmbiguityBand is the half-width around QualityThreshold inside
	// which the semantic scorer is consulted.
	QualityAmbiguityBand float64 `mapstructure:"quality_ambiguity_band" validate:"gte=0,lte=1"`
	// QualitySemanticWeight blends the semantic score with the hash score
	// when both are available.
	QualitySemanticWeight float64 `mapstructure:"quality_semantic_weight" validate:"gte=0,lte=1"`
	// QualityMinSamples is the minimum number of recent successful responses
	// required before a quality comparison is meaningful.
	QualityMinSamples int `mapstructure:"quality_min_samples" validate:"min=1"`
}

// AlertingConfig holds alert dispatch configuration
type AlertingConfig struct {
	// WebhookURLs receive the notification payload. Comma-separated.
	WebhookURLs  []string `mapstructure:"webhook_urls" validate:"dive,url"`
	DashboardURL string   `mapstructure:"dashboard_url"`
	// DispatchTimeoutSeconds bounds a single webhook POST.
	DispatchTimeoutSeconds int `mapstructure:"dispatch_timeout_seconds" validate:"min=1"`
	MaxRetries             int `mapstructure:"max_retries" validate:"min=0"`
}

// RetentionConfig holds data retention configuration
type RetentionConfig struct {
	Days    int  `mapstructure:"days" validate:"min=1"`
	Enabled bool `mapstructure:"enabled"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// DispatchTimeout returns the webhook dispatch timeout as a duration
func (c AlertingConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
