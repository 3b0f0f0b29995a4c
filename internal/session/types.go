package session

import (
	"errors"

	"github.com/merdekaquiz/quiz-gateway/internal/result"
)

// Unanswered marks a question slot with no answer selected yet.
const Unanswered = -1

// Question is a multiple-choice question as held by a session. Answer always
// indexes the currently stored choice order; it is rewritten whenever the
// choices are shuffled.
type Question struct {
	Text    string   `json:"question"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"`
}

// Snapshot is the wholesale-persisted review payload. It is rewritten in full
// on every transition and read once at controller construction; it is never
// partially patched.
type Snapshot struct {
	Questions  []Question `json:"questions"`
	Answers    []int      `json:"answers"`
	Difficulty string     `json:"difficulty"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
}

// View is the client-facing session state.
type View struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Difficulty   string         `json:"difficulty"`
	Questions    []Question     `json:"questions"`
	Answers      []int          `json:"answers"`
	Step         int            `json:"step"`
	Remaining    *int           `json:"remaining"`
	TimeBudget   int            `json:"time_budget"`
	Score        int            `json:"score"`
	Submitted    bool           `json:"submitted"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Result       *result.Result `json:"result,omitempty"`
}

// EventType labels session events streamed to subscribers.
type EventType string

// Event types.
const (
	EventTick        EventType = "tick"
	EventAnswer      EventType = "answer"
	EventSubmitted   EventType = "submitted"
	EventExplanation EventType = "explanation"
)

// Event is one session state change.
type Event struct {
	Type        EventType      `json:"type"`
	Step        *int           `json:"step,omitempty"`
	Remaining   *int           `json:"remaining,omitempty"`
	Index       *int           `json:"index,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Result      *result.Result `json:"result,omitempty"`
}

// Sentinel errors surfaced to the HTTP layer. State stays untouched in every
// case.
var (
	ErrNotFound       = errors.New("session not found")
	ErrSubmitted      = errors.New("session already submitted")
	ErrInvalidStep    = errors.New("step out of range")
	ErrInvalidChoice  = errors.New("choice out of range")
	ErrLoadFailed     = errors.New("question load failed")
	ErrNoSnapshot     = errors.New("no review snapshot stored")
	ErrClosed         = errors.New("session closed")
)
