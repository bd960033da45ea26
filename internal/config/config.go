package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"` // json | text
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	DBEngine     string `mapstructure:"db_engine"` // sqlite | postgres
	DatabasePath string `mapstructure:"database_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`

	AuthMode      string `mapstructure:"auth_mode"` // disabled | optional | required
	AuthJWTSecret string `mapstructure:"auth_jwt_secret"`

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = use server default
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait

	IngestWorkers      int     `mapstructure:"ingest_workers"`       // Concurrent pipeline workers; 0 = default
	MinBaselineSamples int     `mapstructure:"min_baseline_samples"` // Samples before personal baseline applies
	ZScoreThreshold    float64 `mapstructure:"z_score_threshold"`    // Baseline detector trigger
	DefaultDetector    string  `mapstructure:"default_detector"`     // range_based | user_baseline
	DefaultUserID      string  `mapstructure:"default_user_id"`      // Subject for samples without user_id

	TrendCacheTTLSec int `mapstructure:"trend_cache_ttl_sec"` // Trend result cache TTL; 0 = cache disabled

	LLMBaseURL     string  `mapstructure:"llm_base_url"` // Empty disables trend advice
	LLMAPIKey      string  `mapstructure:"llm_api_key"`
	LLMModel       string  `mapstructure:"llm_model"`
	LLMTemperature float64 `mapstructure:"llm_temperature"`

	RateLimitEnabled bool   `mapstructure:"rate_limit_enabled"`
	MaxBodyBytes     int    `mapstructure:"max_body_bytes"` // Max request body; 0 = default 256KB
	TracingEnabled   bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint     string `mapstructure:"otlp_endpoint"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/vitalsentry/")
	viper.AddConfigPath("$HOME/.vitalsentry")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("db_engine", "sqlite")
	viper.SetDefault("database_path", "./vitalsentry.db")
	viper.SetDefault("postgres_dsn", "")
	viper.SetDefault("auth_mode", "disabled")
	viper.SetDefault("auth_jwt_secret", "")
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("ingest_workers", 4)
	viper.SetDefault("min_baseline_samples", 5)
	viper.SetDefault("z_score_threshold", 2.5)
	viper.SetDefault("default_detector", "range_based")
	viper.SetDefault("default_user_id", "default")
	viper.SetDefault("trend_cache_ttl_sec", 30)
	viper.SetDefault("llm_base_url", "")
	viper.SetDefault("llm_api_key", "")
	viper.SetDefault("llm_model", "deepseek-chat")
	viper.SetDefault("llm_temperature", 1.0)
	viper.SetDefault("rate_limit_enabled", false)
	viper.SetDefault("max_body_bytes", 256*1024)
	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("otlp_endpoint", "")

	// Environment variables
	viper.SetEnvPrefix("VITALSENTRY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper leaves comma-separated env lists as a single string; split here.
	if raw := os.Getenv("VITALSENTRY_ALLOWED_ORIGINS"); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.AllowedOrigins = origins
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBEngine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid db_engine %q (want sqlite or postgres)", c.DBEngine)
	}
	if c.DBEngine == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required when db_engine is postgres")
	}
	switch c.AuthMode {
	case "", "disabled", "optional", "required":
	default:
		return fmt.Errorf("invalid auth_mode %q (want disabled, optional, or required)", c.AuthMode)
	}
	if (c.AuthMode == "optional" || c.AuthMode == "required") && c.AuthJWTSecret == "" {
		return fmt.Errorf("auth_jwt_secret is required when auth_mode is %s", c.AuthMode)
	}
	return nil
}
