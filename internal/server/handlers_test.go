package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merdekaquiz/quiz-gateway/internal/config"
	"github.com/merdekaquiz/quiz-gateway/internal/leaderboard"
	"github.com/merdekaquiz/quiz-gateway/internal/result"
	"github.com/merdekaquiz/quiz-gateway/internal/session"
	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

type stubBackend struct {
	questions  upstream.QuestionsResponse
	fetchErr   error
	submitResp upstream.SubmitResponse
	submitErr  error

	record    upstream.SubmissionRecord
	recordErr error

	board    []upstream.LeaderboardEntry
	boardErr error

	fact     string
	factErr  error
	emailErr error
	answer   string
	chatErr  error
}

func (s *stubBackend) FetchQuestions(_ context.Context, _ upstream.QuestionsRequest) (upstream.QuestionsResponse, error) {
	return s.questions, s.fetchErr
}

func (s *stubBackend) SubmitResult(_ context.Context, _ upstream.SubmitRequest) (upstream.SubmitResponse, error) {
	return s.submitResp, s.submitErr
}

func (s *stubBackend) Explain(_ context.Context, _ upstream.ExplainRequest) (string, error) {
	return "penjelasan", nil
}

func (s *stubBackend) SubmissionByID(_ context.Context, _ string) (upstream.SubmissionRecord, error) {
	return s.record, s.recordErr
}

func (s *stubBackend) Leaderboard(_ context.Context) ([]upstream.LeaderboardEntry, error) {
	return s.board, s.boardErr
}

func (s *stubBackend) FunFact(_ context.Context) (string, error) {
	return s.fact, s.factErr
}

func (s *stubBackend) SendResultEmail(_ context.Context, _ upstream.EmailRequest) error {
	return s.emailErr
}

func (s *stubBackend) Chat(_ context.Context, _ string) (string, error) {
	return s.answer, s.chatErr
}

func defaultQuestions() upstream.QuestionsResponse {
	return upstream.QuestionsResponse{
		TotalQuestions: 2,
		Questions: []upstream.QuestionPayload{
			{Text: "q0", Choices: []string{"a", "b"}, Answer: 0},
			{Text: "q1", Choices: []string{"a", "b"}, Answer: 1},
		},
	}
}

func newTestServer(t *testing.T, backend *stubBackend) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	store := session.NewRedisStore(redisClient, time.Hour)
	manager := session.NewManager(backend, backend, store, logger, session.ManagerOptions{})
	t.Cleanup(manager.Shutdown)

	lb := leaderboard.NewService(backend, redisClient, time.Minute, logger)
	reconciler := result.NewReconciler(backend, logger)

	h := NewHandlers(manager, backend, lb, reconciler)
	cfg := &config.App{HTTPAddr: "127.0.0.1:0", CORS: config.CORS{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	}}
	srv := httptest.NewServer(NewHTTPServer(cfg, logger, redisClient, h).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func startSession(t *testing.T, srv *httptest.Server) session.View {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"name":       "Budi",
		"email":      "budi@example.com",
		"difficulty": "easy",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view session.View
	decodeBody(t, resp, &view)
	return view
}

func TestSessionLifecycle(t *testing.T) {
	backend := &stubBackend{questions: defaultQuestions()}
	srv := newTestServer(t, backend)

	view := startSession(t, srv)
	require.NotEmpty(t, view.ID)
	require.Len(t, view.Questions, 2)
	assert.Equal(t, []int{session.Unanswered, session.Unanswered}, view.Answers)

	// answer the first question with its correct choice
	resp := postJSON(t, srv.URL+"/v1/sessions/"+view.ID+"/answers", map[string]int{
		"step":   0,
		"choice": view.Questions[0].Answer,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated session.View
	decodeBody(t, resp, &updated)
	assert.Equal(t, 1, updated.Step)
	assert.Equal(t, 1, updated.Score)

	// submit
	resp = postJSON(t, srv.URL+"/v1/sessions/"+view.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var submitted struct {
		Result result.Result `json:"result"`
		Badge  result.Badge  `json:"badge"`
	}
	decodeBody(t, resp, &submitted)
	assert.Equal(t, 1, submitted.Result.Score)
	assert.Equal(t, 50, submitted.Result.Percentage)
	assert.Equal(t, "Semangat Merdeka", submitted.Badge.Level)

	// answering after submit conflicts
	resp = postJSON(t, srv.URL+"/v1/sessions/"+view.ID+"/answers", map[string]int{"step": 1, "choice": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// review snapshot survives deletion of the live session
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+view.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()

	revResp, err := http.Get(srv.URL + "/v1/sessions/" + view.ID + "/review")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, revResp.StatusCode)
	var snap session.Snapshot
	decodeBody(t, revResp, &snap)
	assert.Equal(t, "Budi", snap.Name)
}

func TestStartSessionValidation(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestStartSessionBackendFailure(t *testing.T) {
	srv := newTestServer(t, &stubBackend{fetchErr: errors.New("down")})

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{"name": "Budi"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionNotFound(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp, err := http.Get(srv.URL + "/v1/sessions/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestExplanationsAfterSubmit(t *testing.T) {
	backend := &stubBackend{questions: defaultQuestions()}
	srv := newTestServer(t, backend)
	view := startSession(t, srv)

	resp := postJSON(t, srv.URL+"/v1/sessions/"+view.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// the fetch runs in the background; poll until both indexes land
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/v1/sessions/" + view.ID + "/explanations")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var payload struct {
			Explanations map[string]string `json:"explanations"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return false
		}
		return len(payload.Explanations) == 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestResultsReconciliation(t *testing.T) {
	backend := &stubBackend{
		questions: defaultQuestions(),
		record: upstream.SubmissionRecord{
			ID:         "abc",
			Name:       "Dewi",
			Score:      9,
			Percentage: 90,
		},
	}
	srv := newTestServer(t, backend)

	resp, err := http.Get(srv.URL + "/v1/results?submission_id=abc")
	require.NoError(t, err)
	var payload struct {
		Result result.Result `json:"result"`
		Badge  result.Badge  `json:"badge"`
	}
	decodeBody(t, resp, &payload)
	assert.Equal(t, "Dewi", payload.Result.Name)
	assert.Equal(t, "Sang Proklamator", payload.Badge.Level)
}

func TestResultsDefaultsWithoutAnything(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp, err := http.Get(srv.URL + "/v1/results")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Result result.Result `json:"result"`
	}
	decodeBody(t, resp, &payload)
	assert.Equal(t, result.DefaultName, payload.Result.Name)
	assert.Equal(t, result.DefaultDifficulty, payload.Result.Difficulty)
}

func TestLeaderboardEndpoint(t *testing.T) {
	entries := make([]upstream.LeaderboardEntry, 15)
	for i := range entries {
		entries[i] = upstream.LeaderboardEntry{Name: fmt.Sprintf("p%d", i), Score: 15 - i}
	}
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions(), board: entries})

	resp, err := http.Get(srv.URL + "/v1/leaderboard?limit=5&offset=5")
	require.NoError(t, err)
	var page leaderboard.Page
	decodeBody(t, resp, &page)
	assert.Equal(t, 15, page.Total)
	require.Len(t, page.Entries, 5)
	assert.Equal(t, 6, page.Entries[0].Rank)
}

func TestFunFactFallback(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions(), factErr: errors.New("down")})

	resp, err := http.Get(srv.URL + "/v1/facts")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string]string
	decodeBody(t, resp, &payload)
	assert.Equal(t, fallbackFact, payload["fakta"])
}

func TestChatFallback(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions(), chatErr: errors.New("down")})

	resp := postJSON(t, srv.URL+"/v1/chat", map[string]string{"question": "Siapa proklamator?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string]string
	decodeBody(t, resp, &payload)
	assert.Equal(t, fallbackChatAnswer, payload["answer"])
}

func TestEmailResultComputesBadge(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp := postJSON(t, srv.URL+"/v1/results/email", map[string]any{
		"name":       "Budi",
		"email":      "budi@example.com",
		"percentage": 85,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestEmailResultRequiresEmail(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp := postJSON(t, srv.URL+"/v1/results/email", map[string]string{"name": "Budi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubBackend{questions: defaultQuestions()})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
