package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/config"
	"github.com/merdekaquiz/quiz-gateway/internal/leaderboard"
	"github.com/merdekaquiz/quiz-gateway/internal/logging"
	"github.com/merdekaquiz/quiz-gateway/internal/result"
	"github.com/merdekaquiz/quiz-gateway/internal/server"
	"github.com/merdekaquiz/quiz-gateway/internal/session"
	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

// Application aggregates shared infrastructure (cache, backend client, HTTP
// server) and the session manager.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis   *redis.Client
	http    *http.Server
	manager *session.Manager
}

// New bootstraps config, logger, Redis, the backend client and the HTTP
// server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, continuing")
	}

	backend := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.HTTPTimeout, logger)

	snapshotStore := session.NewRedisStore(redisClient, cfg.Quiz.SnapshotTTL)
	manager := session.NewManager(backend, backend, snapshotStore, logger, session.ManagerOptions{
		ExplainWorkers: cfg.Quiz.ExplainWorkers,
		SubmitTimeout:  cfg.Quiz.SubmitTimeout,
	})

	lbService := leaderboard.NewService(backend, redisClient, cfg.Quiz.LeaderboardCacheTTL, logger)
	reconciler := result.NewReconciler(backend, logger)

	handlers := server.NewHandlers(manager, backend, lbService, reconciler)
	apiServer := server.NewHTTPServer(cfg, logger, redisClient, handlers)

	return &Application{
		cfg:     cfg,
		logger:  logger,
		redis:   redisClient,
		http:    apiServer,
		manager: manager,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.manager.Shutdown()

	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
