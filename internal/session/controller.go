package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/explain"
	"github.com/merdekaquiz/quiz-gateway/internal/result"
	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

// Backend is the subset of the upstream client a session needs.
type Backend interface {
	FetchQuestions(ctx context.Context, req upstream.QuestionsRequest) (upstream.QuestionsResponse, error)
	SubmitResult(ctx context.Context, req upstream.SubmitRequest) (upstream.SubmitResponse, error)
}

// Controller owns the state of one quiz attempt: the fixed question set, the
// per-question answers, the countdown, and the one-shot submission. All state
// is exclusively owned by this instance; there is no cross-session sharing.
type Controller struct {
	id     string
	logger zerolog.Logger

	backend       Backend
	store         SnapshotStore
	explains      *explain.Fetcher
	tick          time.Duration
	submitTimeout time.Duration

	bgCtx    context.Context
	bgCancel context.CancelFunc

	mu           sync.Mutex
	name         string
	email        string
	difficulty   string
	questions    []Question
	answers      []int
	step         int
	timed        bool
	budget       int // seconds
	remaining    int
	submitted    bool
	submissionID string
	result       *result.Result
	closed       bool
	subs         map[chan Event]struct{}

	stopTimer chan struct{}
	stopOnce  sync.Once
}

func (c *Controller) start() {
	c.mu.Lock()
	timed := c.timed
	c.mu.Unlock()
	if timed {
		go c.runTimer()
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// View returns the current client-facing state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		ID:           c.id,
		Name:         c.name,
		Email:        c.email,
		Difficulty:   c.difficulty,
		Questions:    c.questions,
		Answers:      append([]int(nil), c.answers...),
		Step:         c.step,
		TimeBudget:   c.budget,
		Score:        c.scoreLocked(),
		Submitted:    c.submitted,
		SubmissionID: c.submissionID,
		Result:       c.result,
	}
	if c.timed {
		rem := c.remaining
		v.Remaining = &rem
	}
	return v
}

// CurrentScore counts answers matching each question's correct index. Safe to
// call before submission for live score display.
func (c *Controller) CurrentScore() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scoreLocked()
}

func (c *Controller) scoreLocked() int {
	score := 0
	for i, q := range c.questions {
		if c.answers[i] != Unanswered && c.answers[i] == q.Answer {
			score++
		}
	}
	return score
}

// SelectAnswer records the choice for the given step and advances the current
// step unless already at the last question. Duplicate identical selections
// are idempotent. Once submitted the session state is never touched;
// ErrSubmitted only signals the caller.
func (c *Controller) SelectAnswer(ctx context.Context, step, choice int) error {
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return ErrSubmitted
	}
	if step < 0 || step >= len(c.questions) {
		c.mu.Unlock()
		return ErrInvalidStep
	}
	if choice < 0 || choice >= len(c.questions[step].Choices) {
		c.mu.Unlock()
		return ErrInvalidChoice
	}

	c.answers[step] = choice
	if step == c.step && c.step < len(c.questions)-1 {
		c.step++
	}
	newStep := c.step
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeSnapshot(ctx, snap)
	c.publish(Event{Type: EventAnswer, Step: &newStep})
	return nil
}

// Submit finalizes the session exactly once; later calls return the already
// computed result. The locally computed result survives a backend persistence
// failure so the participant always sees their score.
func (c *Controller) Submit(ctx context.Context, manual bool) (result.Result, error) {
	c.mu.Lock()
	if c.submitted {
		res := *c.result
		c.mu.Unlock()
		return res, nil
	}
	c.submitted = true

	correct := c.scoreLocked()
	total := len(c.questions)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(correct) / float64(total) * 100))
	}
	timeSpent := 0
	if c.timed {
		timeSpent = c.budget - c.remaining
	}

	req := upstream.SubmitRequest{
		Name:           c.name,
		Email:          c.email,
		Question:       "Quiz Kemerdekaan Indonesia",
		Answer:         correct,
		AgeGroup:       ageGroup(c.budget),
		TotalQuestions: total,
		Percentage:     percentage,
		TimeSpent:      timeSpent,
		Difficulty:     c.difficulty,
	}
	c.mu.Unlock()

	c.stopCountdown()

	trigger := "timer"
	if manual {
		trigger = "manual"
	}
	submissionsTotal.WithLabelValues(trigger).Inc()

	resp, err := c.backend.SubmitResult(ctx, req)

	c.mu.Lock()
	if err != nil {
		submissionsLocalOnly.Inc()
		c.logger.Warn().Err(err).Msg("backend submit failed, keeping local result")
	} else {
		c.submissionID = resp.InsertedID
	}
	res := result.Result{
		Name:           c.name,
		Email:          c.email,
		Difficulty:     c.difficulty,
		Score:          correct,
		TotalQuestions: total,
		Percentage:     percentage,
		TimeSpent:      timeSpent,
	}
	c.result = &res
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeSnapshot(ctx, snap)
	c.publish(Event{Type: EventSubmitted, Result: &res})

	go c.explains.Fetch(c.bgCtx, c.explainInputs())

	return res, nil
}

// RefreshExplanations re-runs the fetcher. Already-populated indexes are
// skipped unless clear is set.
func (c *Controller) RefreshExplanations(clear bool) {
	c.mu.Lock()
	submitted := c.submitted
	c.mu.Unlock()
	if !submitted {
		return
	}
	if clear {
		c.explains.Clear()
	}
	go c.explains.Fetch(c.bgCtx, c.explainInputs())
}

// Explanations returns the populated texts and the in-flight flags.
func (c *Controller) Explanations() (map[int]string, map[int]bool) {
	return c.explains.Texts(), c.explains.Loading()
}

// Subscribe registers an event channel. The returned func unsubscribes and
// closes the channel; Close does the same for every remaining subscriber.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, unsubscribe
}

// Close stops the countdown and abandons in-flight explanation fetches. The
// persisted snapshot is kept so the review screen still works.
func (c *Controller) Close() {
	c.stopCountdown()
	c.bgCancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Controller) runTimer() {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-c.stopTimer:
			return
		case <-t.C:
			if c.tickOnce() {
				return
			}
		}
	}
}

// tickOnce decrements the countdown and fires the one automatic submission
// when it reaches zero. Returns true when the timer loop should stop.
func (c *Controller) tickOnce() bool {
	c.mu.Lock()
	if c.submitted || c.closed || !c.timed {
		c.mu.Unlock()
		return true
	}
	if c.remaining > 0 {
		c.remaining--
	}
	rem := c.remaining
	c.mu.Unlock()

	c.publish(Event{Type: EventTick, Remaining: &rem})

	if rem <= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), c.submitTimeout)
		defer cancel()
		// Submit's submitted guard makes the timer and a concurrent manual
		// submit mutually exclusive: whichever wins, the other is a no-op.
		_, _ = c.Submit(ctx, false)
		return true
	}
	return false
}

func (c *Controller) stopCountdown() {
	c.stopOnce.Do(func() { close(c.stopTimer) })
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Questions:  c.questions,
		Answers:    append([]int(nil), c.answers...),
		Difficulty: c.difficulty,
		Name:       c.name,
		Email:      c.email,
	}
}

func (c *Controller) writeSnapshot(ctx context.Context, snap Snapshot) {
	if c.store == nil {
		return
	}
	if err := c.store.Write(ctx, c.id, snap); err != nil {
		c.logger.Warn().Err(err).Msg("snapshot write failed")
	}
}

func (c *Controller) explainInputs() []explain.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	inputs := make([]explain.Question, len(c.questions))
	for i, q := range c.questions {
		inputs[i] = explain.Question{
			Text:         q.Text,
			Choices:      q.Choices,
			CorrectIndex: q.Answer,
		}
	}
	return inputs
}

func (c *Controller) publish(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer, drop rather than block the session
		}
	}
}

func ageGroup(budgetSeconds int) string {
	if budgetSeconds > 0 && budgetSeconds <= 300 {
		return "anak"
	}
	return "remaja"
}
