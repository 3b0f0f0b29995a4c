package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client integrates with the external quiz backend (API key env
// QUIZ_BACKEND_API_KEY, sent as a Bearer token).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a backend client with sane defaults.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "upstream").Logger(),
	}
}

// FetchQuestions requests a question set sized by difficulty.
func (c *Client) FetchQuestions(ctx context.Context, req QuestionsRequest) (QuestionsResponse, error) {
	var resp QuestionsResponse
	if err := c.postJSON(ctx, "/quiz/questions", req, &resp); err != nil {
		return QuestionsResponse{}, err
	}
	if len(resp.Questions) == 0 {
		return QuestionsResponse{}, fmt.Errorf("backend returned empty question set")
	}
	return resp, nil
}

// SubmitResult persists an aggregate quiz result.
func (c *Client) SubmitResult(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.postJSON(ctx, "/quiz/submit", req, &resp); err != nil {
		return SubmitResponse{}, err
	}
	return resp, nil
}

// Explain asks for a short natural-language explanation of the correct choice.
func (c *Client) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	var resp struct {
		Explanation string `json:"explanation"`
	}
	if err := c.postJSON(ctx, "/quiz/explain", req, &resp); err != nil {
		return "", err
	}
	return resp.Explanation, nil
}

// SubmissionByID fetches the authoritative persisted result.
func (c *Client) SubmissionByID(ctx context.Context, id string) (SubmissionRecord, error) {
	var wire submissionWire
	if err := c.getJSON(ctx, "/quiz/submission/"+url.PathEscape(id), &wire); err != nil {
		return SubmissionRecord{}, err
	}
	rec := wire.normalize()
	if rec.ID == "" {
		return SubmissionRecord{}, fmt.Errorf("submission payload missing id")
	}
	return rec, nil
}

// Leaderboard fetches the full ranked leaderboard.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var wires []leaderboardEntryWire
	if err := c.getJSON(ctx, "/quiz/leaderboard", &wires); err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(wires))
	for _, w := range wires {
		entries = append(entries, w.normalize())
	}
	return entries, nil
}

// FunFact retrieves one decorative history fact.
func (c *Client) FunFact(ctx context.Context) (string, error) {
	var resp struct {
		Fakta string `json:"fakta"`
	}
	if err := c.getJSON(ctx, "/quiz/fakta", &resp); err != nil {
		return "", err
	}
	return resp.Fakta, nil
}

// SendResultEmail forwards a result summary for email delivery.
func (c *Client) SendResultEmail(ctx context.Context, req EmailRequest) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	return c.postJSON(ctx, "/quiz/email", req, &resp)
}

// Chat answers a free-form history question.
func (c *Client) Chat(ctx context.Context, question string) (string, error) {
	req := struct {
		Question string `json:"question"`
	}{Question: question}
	var resp struct {
		Answer string `json:"answer"`
	}
	if err := c.postJSON(ctx, "/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s payload: %w", req.URL.Path, err)
	}
	return nil
}
