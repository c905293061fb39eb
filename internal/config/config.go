package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Temporal TemporalConfig
	Auth     AuthConfig
	Polling  PollingConfig
}

type AppConfig struct {
	Name          string        `envconfig:"APP_NAME" default:"ideas-service"`
	Port          string        `envconfig:"PORT" default:"8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" required:"true"`
	CORSOrigins   []string      `envconfig:"CORS_ORIGINS" default:"*"`
	DraftTTL      time.Duration `envconfig:"DRAFT_TTL" default:"24h"`
}

type PostgresConfig struct {
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	MaxConns     int           `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	ConnAttempts int           `envconfig:"POSTGRES_CONN_ATTEMPTS" default:"5"`
	ConnTimeout  time.Duration `envconfig:"POSTGRES_CONN_TIMEOUT" default:"1s"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"STRIPE_API_KEY" required:"true"`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	BackendURL    string `envconfig:"STRIPE_BACKEND_URL"`
	RateLimit     int    `envconfig:"STRIPE_RATE_LIMIT" default:"20"`
	MaxRetries    int64  `envconfig:"STRIPE_MAX_RETRIES" default:"2"`
}

type TemporalConfig struct {
	HostPort  string `envconfig:"TEMPORAL_HOST_PORT" default:"localhost:7233"`
	Namespace string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`
	TaskQueue string `envconfig:"TEMPORAL_TASK_QUEUE" default:"idea-submission-task-queue"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`
}

// PollingConfig bounds the two payment status pollers. The owner poller runs
// behind the submission workflow, the callback poller behind the redirect page.
type PollingConfig struct {
	OwnerInterval       time.Duration `envconfig:"POLL_OWNER_INTERVAL" default:"5s"`
	OwnerMaxAttempts    int           `envconfig:"POLL_OWNER_MAX_ATTEMPTS" default:"120"`
	CallbackInterval    time.Duration `envconfig:"POLL_CALLBACK_INTERVAL" default:"2s"`
	CallbackMaxAttempts int           `envconfig:"POLL_CALLBACK_MAX_ATTEMPTS" default:"60"`
}

// Load loads environment variables into the Config struct.
func Load() (*Config, error) {
	// Load from .env file if present (optional)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.Polling.OwnerInterval <= 0 || cfg.Polling.CallbackInterval <= 0 {
		return nil, fmt.Errorf("poll intervals must be positive")
	}

	return &cfg, nil
}
