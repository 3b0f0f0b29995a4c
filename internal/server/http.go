package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/config"
	"github.com/merdekaquiz/quiz-gateway/internal/logging"
)

// NewHTTPServer wires the full route table for the gateway.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, redisClient *redis.Client, h *Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	// Session flow
	mux.HandleFunc("POST /v1/sessions", h.StartSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.CloseSession)
	mux.HandleFunc("POST /v1/sessions/{id}/answers", h.SelectAnswer)
	mux.HandleFunc("POST /v1/sessions/{id}/submit", h.Submit)
	mux.HandleFunc("GET /v1/sessions/{id}/explanations", h.Explanations)
	mux.HandleFunc("POST /v1/sessions/{id}/explanations/refresh", h.RefreshExplanations)
	mux.HandleFunc("GET /v1/sessions/{id}/review", h.Review)
	mux.HandleFunc("GET /v1/sessions/{id}/events", h.Events)

	// Results + peripherals
	mux.HandleFunc("GET /v1/results", h.Results)
	mux.HandleFunc("POST /v1/results/email", h.EmailResult)
	mux.HandleFunc("GET /v1/leaderboard", h.Leaderboard)
	mux.HandleFunc("GET /v1/facts", h.FunFact)
	mux.HandleFunc("POST /v1/chat", h.Chat)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsMiddleware(cfg.CORS, loggerMiddleware(logger, mux)),
	}
}

func pingDependencies(ctx context.Context, redisClient *redis.Client) error {
	return redisClient.Ping(ctx).Err()
}

// loggerMiddleware stamps a request-scoped logger into the context; handlers
// pull it back out with logging.FromContext.
func loggerMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
	})
}

// corsMiddleware applies the configured CORS policy and short-circuits
// preflight requests.
func corsMiddleware(cfg config.CORS, next http.Handler) http.Handler {
	allowedOrigins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	allowAll := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowedOrigins[o] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, ok := allowedOrigins[origin]
			if ok || allowAll {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
