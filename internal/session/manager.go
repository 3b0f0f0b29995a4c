package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/explain"
	"github.com/merdekaquiz/quiz-gateway/internal/shuffle"
	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

// ManagerOptions tunes session behavior. Zero values fall back to defaults.
type ManagerOptions struct {
	ExplainWorkers int
	SubmitTimeout  time.Duration
	TickInterval   time.Duration
	Rand           *rand.Rand
}

// Manager creates and tracks live session controllers.
type Manager struct {
	backend       Backend
	explainClient explain.Client
	store         SnapshotStore
	logger        zerolog.Logger
	opts          ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewManager constructs a session manager.
func NewManager(backend Backend, explainClient explain.Client, store SnapshotStore, logger zerolog.Logger, opts ManagerOptions) *Manager {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 6 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Manager{
		backend:       backend,
		explainClient: explainClient,
		store:         store,
		logger:        logger.With().Str("component", "session").Logger(),
		opts:          opts,
		sessions:      make(map[string]*Controller),
	}
}

// Start fetches a question set, shuffles each question's choices
// independently, and begins the countdown when the backend returned a time
// budget. A backend or payload failure yields ErrLoadFailed; nothing is
// registered in that case.
func (m *Manager) Start(ctx context.Context, name, email, difficulty string) (*Controller, error) {
	resp, err := m.backend.FetchQuestions(ctx, upstream.QuestionsRequest{
		Name:       name,
		Email:      email,
		Difficulty: difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	questions, err := normalizeQuestions(resp.Questions, m.opts.Rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = Unanswered
	}

	budget := resp.TimeMinutes * 60
	bgCtx, bgCancel := context.WithCancel(context.Background())

	c := &Controller{
		id:            uuid.NewString(),
		backend:       m.backend,
		store:         m.store,
		tick:          m.opts.TickInterval,
		submitTimeout: m.opts.SubmitTimeout,
		bgCtx:         bgCtx,
		bgCancel:      bgCancel,
		name:          name,
		email:         email,
		difficulty:    difficulty,
		questions:     questions,
		answers:       answers,
		timed:         budget > 0,
		budget:        budget,
		remaining:     budget,
		subs:          make(map[chan Event]struct{}),
		stopTimer:     make(chan struct{}),
	}
	c.logger = m.logger.With().Str("session_id", c.id).Logger()
	c.explains = explain.NewFetcher(m.explainClient, m.opts.ExplainWorkers, c.logger, func(i int, text string) {
		idx := i
		c.publish(Event{Type: EventExplanation, Index: &idx, Explanation: text})
	})

	c.writeSnapshot(ctx, c.snapshotLocked())
	c.start()

	m.mu.Lock()
	m.sessions[c.id] = c
	m.mu.Unlock()

	sessionsStarted.Inc()
	c.logger.Info().Str("difficulty", difficulty).Int("questions", len(questions)).Int("budget_seconds", budget).Msg("session started")
	return c, nil
}

// Get returns a live controller by id.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Review reads the persisted snapshot for a session, live or not.
func (m *Manager) Review(ctx context.Context, id string) (*Snapshot, error) {
	if m.store == nil {
		return nil, ErrNoSnapshot
	}
	snap, err := m.store.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Close stops a session's timer and abandons its in-flight fetches, keeping
// the snapshot for review.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if ok {
		c.Close()
	}
	return ok
}

// Shutdown closes every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := make([]*Controller, 0, len(m.sessions))
	for id, c := range m.sessions {
		live = append(live, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, c := range live {
		c.Close()
	}
}

// normalizeQuestions validates the backend payload and shuffles each
// question's choices, rewriting the answer index to follow the correct choice.
func normalizeQuestions(payload []upstream.QuestionPayload, rng *rand.Rand) ([]Question, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty question set")
	}
	questions := make([]Question, len(payload))
	for i, p := range payload {
		if len(p.Choices) == 0 {
			return nil, fmt.Errorf("question %d has no choices", i)
		}
		if p.Answer < 0 || p.Answer >= len(p.Choices) {
			return nil, fmt.Errorf("question %d answer index %d out of range", i, p.Answer)
		}
		choices, answer := shuffle.Choices(p.Choices, p.Answer, rng)
		questions[i] = Question{
			Text:    p.Text,
			Choices: choices,
			Answer:  answer,
		}
	}
	return questions, nil
}
