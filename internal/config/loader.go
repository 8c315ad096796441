package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optionally read from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lumina")

	// Ignore error if config file not found
	_ = v.ReadInConfig()

	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.Env = v.GetString("server_env")

	// PostgreSQL
	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = int32(v.GetInt("postgres_max_conns"))
	cfg.Postgres.MinConns = int32(v.GetInt("postgres_min_conns"))

	// Redis
	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// Auth
	cfg.Auth.APIKeys = splitNonEmpty(v.GetString("api_keys"))
	cfg.Auth.JWTSecret = v.GetString("jwt_secret")

	// Quota
	cfg.Quota.Enabled = v.GetBool("quota_enabled")
	cfg.Quota.DailyTraceLimit = v.GetInt64("daily_trace_limit")

	// Baselines
	cfg.Baseline.MinSamples = v.GetInt("baseline_min_samples")
	cfg.Baseline.MaxSamples = v.GetInt("baseline_max_samples")
	cfg.Baseline.LookbackHours = v.GetInt("baseline_lookback_hours")

	// Anomaly detection
	cfg.Anomaly.CostSpikeThresholdPercent = v.GetFloat64("cost_spike_threshold_percent")
	cfg.Anomaly.CostBaselinePercentile = v.GetString("cost_baseline_percentile")
	cfg.Anomaly.QualityThreshold = v.GetFloat64("quality_threshold")
	cfg.Anomaly.QualityAmbiguityBand = v.GetFloat64("quality_ambiguity_band")
	cfg.Anomaly.QualitySemanticWeight = v.GetFloat64("quality_semantic_weight")
	cfg.Anomaly.QualityMinSamples = v.GetInt("quality_min_samples")

	// Alerting
	cfg.Alerting.WebhookURLs = splitNonEmpty(v.GetString("webhook_urls"))
	cfg.Alerting.DashboardURL = v.GetString("dashboard_url")
	cfg.Alerting.DispatchTimeoutSeconds = v.GetInt("dispatch_timeout_seconds")
	cfg.Alerting.MaxRetries = v.GetInt("alert_max_retries")

	// Retention
	cfg.Retention.Days = v.GetInt("retention_days")
	cfg.Retention.Enabled = v.GetBool("retention_enabled")

	// Worker
	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")

	// Logging
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	// Sentry
	cfg.Sentry.Enabled = v.GetBool("sentry_enabled")
	cfg.Sentry.DSN = v.GetString("sentry_dsn")
	cfg.Sentry.Environment = v.GetString("sentry_environment")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry_sample_rate")

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 9411)
	v.SetDefault("server_env", "development")

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "lumina")
	v.SetDefault("postgres_password", "lumina")
	v.SetDefault("postgres_db", "lumina")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 25)
	v.SetDefault("postgres_min_conns", 5)

	// Redis defaults
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// Auth defaults
	v.SetDefault("api_keys", "")
	v.SetDefault("jwt_secret", "change-me-in-production")

	// Quota defaults
	v.SetDefault("quota_enabled", true)
	v.SetDefault("daily_trace_limit", 100000)

	// Baseline defaults
	v.SetDefault("baseline_min_samples", 10)
	v.SetDefault("baseline_max_samples", 10000)
	v.SetDefault("baseline_lookback_hours", 168)

	// Anomaly defaults
	v.SetDefault("cost_spike_threshold_percent", 50.0)
	v.SetDefault("cost_baseline_percentile", "p95")
	v.SetDefault("quality_threshold", 0.6)
	v.SetDefault("quality_ambiguity_band", 0.15)
	v.SetDefault("quality_semantic_weight", 0.5)
	v.SetDefault("quality_min_samples", 10)

	// Alerting defaults
	v.SetDefault("webhook_urls", "")
	v.SetDefault("dashboard_url", "http://localhost:3000")
	v.SetDefault("dispatch_timeout_seconds", 10)
	v.SetDefault("alert_max_retries", 5)

	// Retention defaults
	v.SetDefault("retention_days", 30)
	v.SetDefault("retention_enabled", true)

	// Worker defaults
	v.SetDefault("worker_concurrency", 10)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Sentry defaults
	v.SetDefault("sentry_enabled", false)
	v.SetDefault("sentry_sample_rate", 1.0)
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: field %s failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	// Conditional rules the struct tags cannot express.
	if cfg.Auth.JWTSecret == "change-me-in-production" && cfg.IsProduction() {
		return fmt.Errorf("JWT secret must be changed in production")
	}
	if len(cfg.Auth.APIKeys) == 0 && cfg.IsProduction() {
		return fmt.Errorf("at least one API key must be configured in production")
	}
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
