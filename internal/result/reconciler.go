package result

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

// Result is the complete, fully-defaulted quiz outcome handed to clients.
// It is always derived, never partially populated.
type Result struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Difficulty     string `json:"difficulty"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
	TimeSpent      int    `json:"timeSpent"`
}

// Defaults applied whenever a field is missing from both the authoritative
// record and the fallback parameters.
const (
	DefaultName       = "User"
	DefaultDifficulty = "unknown"
)

// SubmissionFetcher looks up a persisted result by id.
type SubmissionFetcher interface {
	SubmissionByID(ctx context.Context, id string) (upstream.SubmissionRecord, error)
}

// Params carries the raw, possibly absent fallback values from the request.
type Params struct {
	ID             string
	Name           string
	Email          string
	Difficulty     string
	Score          string
	TotalQuestions string
	Percentage     string
	TimeSpent      string
}

// Reconciler resolves the authoritative result by submission id, degrading to
// the supplied parameters when the id is absent or the lookup fails.
type Reconciler struct {
	backend SubmissionFetcher
	logger  zerolog.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(backend SubmissionFetcher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		backend: backend,
		logger:  logger.With().Str("component", "result").Logger(),
	}
}

// Resolve always produces a complete Result, never an error.
func (r *Reconciler) Resolve(ctx context.Context, p Params) Result {
	if p.ID != "" && r.backend != nil {
		rec, err := r.backend.SubmissionByID(ctx, p.ID)
		if err == nil {
			return fromRecord(rec)
		}
		r.logger.Warn().Err(err).Str("submission_id", p.ID).Msg("authoritative result fetch failed, using fallback params")
	}
	return fromParams(p)
}

func fromRecord(rec upstream.SubmissionRecord) Result {
	res := Result{
		Name:           rec.Name,
		Email:          rec.Email,
		Difficulty:     rec.Difficulty,
		Score:          rec.Score,
		TotalQuestions: rec.TotalQuestions,
		Percentage:     rec.Percentage,
		TimeSpent:      rec.TimeSpent,
	}
	return withDefaults(res)
}

func fromParams(p Params) Result {
	res := Result{
		Name:           p.Name,
		Email:          p.Email,
		Difficulty:     p.Difficulty,
		Score:          atoiOrZero(p.Score),
		TotalQuestions: atoiOrZero(p.TotalQuestions),
		Percentage:     atoiOrZero(p.Percentage),
		TimeSpent:      atoiOrZero(p.TimeSpent),
	}
	return withDefaults(res)
}

func withDefaults(res Result) Result {
	if res.Name == "" {
		res.Name = DefaultName
	}
	if res.Difficulty == "" {
		res.Difficulty = DefaultDifficulty
	}
	return res
}

func atoiOrZero(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
