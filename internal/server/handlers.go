package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/leaderboard"
	"github.com/merdekaquiz/quiz-gateway/internal/logging"
	"github.com/merdekaquiz/quiz-gateway/internal/result"
	"github.com/merdekaquiz/quiz-gateway/internal/session"
	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
	httperrors "github.com/merdekaquiz/quiz-gateway/pkg/http/errors"
)

// Indonesian fallbacks served when the backend peripheral endpoints fail. The
// UI shows these verbatim.
const (
	fallbackFact       = "Tahukah kamu? Indonesia memproklamasikan kemerdekaan pada 17 Agustus 1945."
	fallbackChatAnswer = "Maaf, terjadi kendala. Silakan coba lagi."
)

// Peripherals is the subset of the upstream client used outside the session
// flow.
type Peripherals interface {
	FunFact(ctx context.Context) (string, error)
	SendResultEmail(ctx context.Context, req upstream.EmailRequest) error
	Chat(ctx context.Context, question string) (string, error)
}

// Handlers bundles the HTTP handlers for the quiz API. Per-request loggers
// come from the request context, stamped there by loggerMiddleware.
type Handlers struct {
	manager     *session.Manager
	peripherals Peripherals
	leaderboard *leaderboard.Service
	reconciler  *result.Reconciler
}

// NewHandlers constructs the API handler set.
func NewHandlers(manager *session.Manager, peripherals Peripherals, lb *leaderboard.Service, reconciler *result.Reconciler) *Handlers {
	return &Handlers{
		manager:     manager,
		peripherals: peripherals,
		leaderboard: lb,
		reconciler:  reconciler,
	}
}

func requestLogger(r *http.Request) *zerolog.Logger {
	l := logging.FromContext(r.Context())
	return &l
}

type startSessionRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Difficulty string `json:"difficulty"`
}

// StartSession creates a session: fetches the question set, shuffles choices
// and starts the countdown.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "name is required", "name")
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	c, err := h.manager.Start(r.Context(), req.Name, req.Email, req.Difficulty)
	if err != nil {
		requestLogger(r).Error().Err(err).Str("difficulty", req.Difficulty).Msg("session start failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeSessionStartFailed, "could not load questions")
		return
	}
	writeJSON(w, http.StatusCreated, c.View())
}

// GetSession returns the live session state.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

// CloseSession tears a live session down, keeping the review snapshot.
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Close(r.PathValue("id")) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectAnswerRequest struct {
	Step   int `json:"step"`
	Choice int `json:"choice"`
}

// SelectAnswer records a choice for one question.
func (h *Handlers) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}

	var req selectAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	switch err := c.SelectAnswer(r.Context(), req.Step, req.Choice); {
	case err == nil:
		writeJSON(w, http.StatusOK, c.View())
	case errors.Is(err, session.ErrSubmitted):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeAlreadySubmitted, "session already submitted")
	case errors.Is(err, session.ErrInvalidStep):
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "step out of range", "step")
	case errors.Is(err, session.ErrInvalidChoice):
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "choice out of range", "choice")
	default:
		requestLogger(r).Error().Err(err).Msg("select answer failed")
		httperrors.RespondInternalError(w, "could not record answer")
	}
}

// Submit finalizes the session. Safe to call more than once; later calls get
// the already computed result.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}

	res, err := c.Submit(r.Context(), true)
	if err != nil {
		requestLogger(r).Error().Err(err).Msg("submit failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeSubmitFailed, "could not submit result")
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Result:       res,
		Badge:        result.BadgeFor(res.Percentage),
		SubmissionID: c.View().SubmissionID,
	})
}

type submitResponse struct {
	Result       result.Result `json:"result"`
	Badge        result.Badge  `json:"badge"`
	SubmissionID string        `json:"submission_id,omitempty"`
}

// Explanations returns the per-question explanation texts gathered so far plus
// the in-flight flags.
func (h *Handlers) Explanations(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}
	texts, loading := c.Explanations()
	writeJSON(w, http.StatusOK, map[string]any{
		"explanations": texts,
		"loading":      loading,
	})
}

type refreshExplanationsRequest struct {
	Clear bool `json:"clear"`
}

// RefreshExplanations re-runs the explanation fetch. Populated indexes are
// kept unless clear is set.
func (h *Handlers) RefreshExplanations(w http.ResponseWriter, r *http.Request) {
	c, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "session not found")
		return
	}
	var req refreshExplanationsRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means keep
	}
	c.RefreshExplanations(req.Clear)
	w.WriteHeader(http.StatusAccepted)
}

// Review serves the persisted snapshot, which outlives the live session.
func (h *Handlers) Review(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, session.ErrNoSnapshot) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeReviewNotFound, "no review data for session")
			return
		}
		requestLogger(r).Error().Err(err).Msg("review read failed")
		httperrors.RespondInternalError(w, "could not read review data")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Results reconciles a result from the submission id plus fallback query
// params. Always answers 200 with a complete payload.
func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.reconciler.Resolve(r.Context(), result.Params{
		ID:             q.Get("submission_id"),
		Name:           q.Get("name"),
		Email:          q.Get("email"),
		Difficulty:     q.Get("difficulty"),
		Score:          q.Get("score"),
		TotalQuestions: q.Get("total"),
		Percentage:     q.Get("percentage"),
		TimeSpent:      q.Get("time_spent"),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"badge":  result.BadgeFor(res.Percentage),
	})
}

type emailResultRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
	Badge          string `json:"badge"`
}

// EmailResult forwards a result summary to the backend for email delivery. The
// badge is recomputed server-side when the caller omits it.
func (h *Handlers) EmailResult(w http.ResponseWriter, r *http.Request) {
	var req emailResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Email == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "email is required", "email")
		return
	}
	if req.Badge == "" {
		req.Badge = result.BadgeFor(req.Percentage).Level
	}

	err := h.peripherals.SendResultEmail(r.Context(), upstream.EmailRequest{
		Name:           req.Name,
		Email:          req.Email,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		Percentage:     req.Percentage,
		Badge:          req.Badge,
	})
	if err != nil {
		requestLogger(r).Warn().Err(err).Msg("result email send failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeEmailSendFailed, "could not send result email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

// Leaderboard serves a paginated ranked board.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	page, err := h.leaderboard.Page(r.Context(), limit, offset)
	if err != nil {
		requestLogger(r).Error().Err(err).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeLeaderboardFetchFailed, "could not fetch leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// FunFact serves an independence fun fact, falling back to a fixed one when
// the backend is unreachable.
func (h *Handlers) FunFact(w http.ResponseWriter, r *http.Request) {
	fact, err := h.peripherals.FunFact(r.Context())
	if err != nil || fact == "" {
		if err != nil {
			requestLogger(r).Warn().Err(err).Msg("fun fact fetch failed, serving fallback")
		}
		fact = fallbackFact
	}
	writeJSON(w, http.StatusOK, map[string]string{"fakta": fact})
}

type chatRequest struct {
	Question string `json:"question"`
}

// Chat proxies a free-form question to the backend assistant.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "question is required", "question")
		return
	}

	answer, err := h.peripherals.Chat(r.Context(), req.Question)
	if err != nil || answer == "" {
		if err != nil {
			requestLogger(r).Warn().Err(err).Msg("chat request failed, serving fallback")
		}
		answer = fallbackChatAnswer
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
