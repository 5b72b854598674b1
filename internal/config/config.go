package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Run modes
const (
	ModeWeb    = "web"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Weather holds settings for the upstream weather API client
type Weather struct {
	APIKey             string        `envconfig:"OPENWEATHER_API_KEY"`
	URL                string        `envconfig:"OPENWEATHER_URL" default:"https://api.openweathermap.org/data/2.5/weather"`
	Timeout            time.Duration `envconfig:"WEATHER_HTTP_TIMEOUT" default:"12s"`
	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
}

// SMTP holds outbound mail settings. An empty Host disables delivery.
type SMTP struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"DEFAULT_FROM_EMAIL" default:"webmaster@localhost"`
}

// Config holds application configuration loaded from environment variables
type Config struct {
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`
	Mode string `envconfig:"MODE" default:"all"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogFile   string `envconfig:"LOG_FILE"`

	RefreshSchedule   string `envconfig:"REFRESH_SCHEDULE" default:"@every 30m"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	EventsEnabled     bool   `envconfig:"EVENTS_ENABLED" default:"true"`
	SeedDevData       bool   `envconfig:"SEED_DEV_DATA" default:"false"`

	Weather Weather
	SMTP    SMTP
}

// Load reads configuration from the environment, after applying an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Mode {
	case ModeWeb, ModeWorker, ModeAll:
	default:
		return nil, fmt.Errorf("unsupported MODE %q (want web, worker or all)", cfg.Mode)
	}

	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	// Jobs surface this as a permanent failure; the process still starts so the
	// registration surface stays usable.
	if cfg.Weather.APIKey == "" {
		log.Println("WARNING: OPENWEATHER_API_KEY not set. Weather fetch jobs will fail until it is configured.")
	}

	return &cfg, nil
}

// RunsWeb reports whether the HTTP surface should be started
func (c *Config) RunsWeb() bool {
	return c.Mode == ModeWeb || c.Mode == ModeAll
}

// RunsWorker reports whether the queue server and scheduler should be started
func (c *Config) RunsWorker() bool {
	return c.Mode == ModeWorker || c.Mode == ModeAll
}
