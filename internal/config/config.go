package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-gateway"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Upstream Upstream
	Redis    Redis
	Quiz     Quiz
	CORS     CORS
}

// Upstream points at the external quiz backend that owns question generation,
// scoring persistence, AI explanations, leaderboard storage and email delivery.
type Upstream struct {
	BaseURL     string        `env:"QUIZ_BACKEND_URL" envDefault:"http://localhost:8001"`
	APIKey      string        `env:"QUIZ_BACKEND_API_KEY"`
	HTTPTimeout time.Duration `env:"QUIZ_BACKEND_TIMEOUT" envDefault:"8s"`
}

// Redis holds snapshot + cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Quiz groups session flow defaults.
type Quiz struct {
	ExplainWorkers      int           `env:"EXPLAIN_WORKERS" envDefault:"3"`
	SnapshotTTL         time.Duration `env:"SESSION_SNAPSHOT_TTL" envDefault:"2h"`
	SubmitTimeout       time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"6s"`
	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
