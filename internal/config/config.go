package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Weather    WeatherConfig    `yaml:"weather" mapstructure:"weather"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Weights    WeightsConfig    `yaml:"weights" mapstructure:"weights"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	Feedback   FeedbackConfig   `yaml:"feedback" mapstructure:"feedback"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Location   LocationConfig   `yaml:"location" mapstructure:"location"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the durable key-value backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite", "postgres", "redis" or "memory"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	KeyPrefix   string `yaml:"key_prefix" mapstructure:"key_prefix"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WeatherConfig configures the Open-Meteo forecast client.
type WeatherConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PastDays     int    `yaml:"past_days" mapstructure:"past_days"`
	ForecastDays int    `yaml:"forecast_days" mapstructure:"forecast_days"`
}

// GeocodeConfig configures the ZIP lookup client.
type GeocodeConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// WeightsConfig points at the remote weight override document. Empty URL
// disables the fetch.
type WeightsConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// CatalogConfig optionally replaces the built-in lure catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CollectorConfig configures the feedback upload endpoint.
type CollectorConfig struct {
	URL              string `yaml:"url" mapstructure:"url"`
	Token            string `yaml:"token" mapstructure:"token"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// FeedbackConfig configures catch-feedback prompts.
type FeedbackConfig struct {
	DelayMinutes int `yaml:"delay_minutes" mapstructure:"delay_minutes"`
}

// SessionConfig configures the recommendation flow.
type SessionConfig struct {
	ScoringDelayMs int `yaml:"scoring_delay_ms" mapstructure:"scoring_delay_ms"`
}

// LocationConfig is the default fishing spot. Lat/Lon take precedence over Zip.
type LocationConfig struct {
	Lat *float64 `yaml:"lat" mapstructure:"lat"`
	Lon *float64 `yaml:"lon" mapstructure:"lon"`
	Zip string   `yaml:"zip" mapstructure:"zip"`
}

// RetryConfig configures retries for outbound lookups.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the background queue checker run by serve.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	BacklogThreshold  int    `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	StaleAfterHours   int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LUREIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults still need binding for env lookup.
	for _, key := range []string{
		"store.redis_addr", "weights.url", "catalog.path",
		"collector.url", "collector.token",
		"location.lat", "location.lon", "location.zip",
		"monitoring.webhook_url",
	} {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lureiq.db")
	v.SetDefault("store.key_prefix", "lureiq:")
	v.SetDefault("weather.base_url", "https://api.open-meteo.com/v1")
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("weather.past_days", 3)
	v.SetDefault("weather.forecast_days", 1)
	v.SetDefault("geocode.base_url", "https://api.zippopotam.us")
	v.SetDefault("geocode.rate_limit", 2.0)
	v.SetDefault("collector.timeout_secs", 15)
	v.SetDefault("collector.failure_threshold", 3)
	v.SetDefault("collector.reset_timeout_secs", 60)
	v.SetDefault("feedback.delay_minutes", 90)
	v.SetDefault("session.scoring_delay_ms", 3000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 250)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.backlog_threshold", 50)
	v.SetDefault("monitoring.stale_after_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// Validate checks the loaded configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required for redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, redis, memory", c.Store.Driver))
	}

	if c.Feedback.DelayMinutes < 0 {
		errs = append(errs, "feedback.delay_minutes must be >= 0")
	}
	if c.Session.ScoringDelayMs < 0 {
		errs = append(errs, "session.scoring_delay_ms must be >= 0")
	}

	loc := c.Location
	if (loc.Lat == nil) != (loc.Lon == nil) {
		errs = append(errs, "location.lat and location.lon must be set together")
	}
	if loc.Lat != nil && (*loc.Lat < -90 || *loc.Lat > 90) {
		errs = append(errs, fmt.Sprintf("location.lat %v out of range", *loc.Lat))
	}
	if loc.Lon != nil && (*loc.Lon < -180 || *loc.Lon > 180) {
		errs = append(errs, fmt.Sprintf("location.lon %v out of range", *loc.Lon))
	}
	if loc.Zip != "" && !zipPattern.MatchString(loc.Zip) {
		errs = append(errs, fmt.Sprintf("location.zip %q must be 5 digits", loc.Zip))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Monitoring.BacklogThreshold < 0 {
		errs = append(errs, "monitoring.backlog_threshold must be >= 0")
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
