package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

const (
	cacheKey        = "leaderboard:view"
	defaultCacheTTL = 30 * time.Second
)

// Fetcher pulls the full ranked board from the quiz backend.
type Fetcher interface {
	Leaderboard(ctx context.Context) ([]upstream.LeaderboardEntry, error)
}

// Page is one paginated slice of the board.
type Page struct {
	Entries []upstream.LeaderboardEntry `json:"entries"`
	Total   int                         `json:"total"`
	Limit   int                         `json:"limit"`
	Offset  int                         `json:"offset"`
}

// Service serves a read-only leaderboard view, caching the upstream payload
// in Redis so the backend is not hit on every page load.
type Service struct {
	backend Fetcher
	redis   *redis.Client
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewService constructs a leaderboard view service.
func NewService(backend Fetcher, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		backend: backend,
		redis:   redisClient,
		ttl:     ttl,
		logger:  logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Page returns a ranked slice of the board. Ranks are renumbered locally so
// pagination stays consistent even when the backend omits them.
func (s *Service) Page(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.entries(ctx)
	if err != nil {
		return Page{}, err
	}

	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]upstream.LeaderboardEntry, end-offset)
	copy(page, entries[offset:end])
	for i := range page {
		page[i].Rank = offset + i + 1
	}

	return Page{Entries: page, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) entries(ctx context.Context) ([]upstream.LeaderboardEntry, error) {
	if cached := s.cached(ctx); cached != nil {
		return cached, nil
	}

	entries, err := s.backend.Leaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard fetch: %w", err)
	}
	s.cache(ctx, entries)
	return entries, nil
}

func (s *Service) cached(ctx context.Context) []upstream.LeaderboardEntry {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("leaderboard cache read failed")
		}
		return nil
	}
	var entries []upstream.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache decode failed")
		return nil
	}
	return entries
}

func (s *Service) cache(ctx context.Context, entries []upstream.LeaderboardEntry) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache write failed")
	}
}
