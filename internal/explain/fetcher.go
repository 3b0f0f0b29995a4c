// Package explain retrieves per-question explanations from the quiz backend
// with a bounded worker pool.
package explain

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

// DefaultWorkers bounds concurrent explanation requests per session.
const DefaultWorkers = 3

// Fallback strings stored when the backend cannot produce an explanation.
// Callers never see an empty or permanently-loading entry.
const (
	FallbackUnavailable = "Penjelasan tidak tersedia."
	FallbackFailed      = "Gagal mengambil penjelasan."
)

var fallbacksStored = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "quiz",
	Subsystem: "explain",
	Name:      "fallbacks_total",
	Help:      "Explanation requests that degraded to the fallback text.",
})

// Client issues one explanation request.
type Client interface {
	Explain(ctx context.Context, req upstream.ExplainRequest) (string, error)
}

// Question is the input for a single explanation request.
type Question struct {
	Text         string
	Choices      []string
	CorrectIndex int
}

// OnUpdate is invoked after an index gains its final text (success or
// fallback). Called outside the fetcher lock.
type OnUpdate func(index int, text string)

// Fetcher populates an index -> explanation map exactly once per index.
// Entries are never removed once set; a refresh skips populated and
// in-flight indexes unless Clear is called first.
type Fetcher struct {
	client   Client
	workers  int
	logger   zerolog.Logger
	onUpdate OnUpdate

	mu      sync.Mutex
	texts   map[int]string
	loading map[int]bool
}

// NewFetcher creates a fetcher with the given worker count (<=0 means
// DefaultWorkers).
func NewFetcher(client Client, workers int, logger zerolog.Logger, onUpdate OnUpdate) *Fetcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Fetcher{
		client:   client,
		workers:  workers,
		logger:   logger.With().Str("component", "explain").Logger(),
		onUpdate: onUpdate,
		texts:    make(map[int]string),
		loading:  make(map[int]bool),
	}
}

// Fetch runs the worker pool over all question indexes and blocks until every
// index has been attempted or ctx is canceled. Each index is claimed by
// exactly one worker exactly once per run.
func (f *Fetcher) Fetch(ctx context.Context, questions []Question) {
	if len(questions) == 0 {
		return
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < f.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(questions) {
					return
				}
				if ctx.Err() != nil {
					return
				}
				f.fetchOne(ctx, i, questions[i])
			}
		}()
	}
	wg.Wait()
}

func (f *Fetcher) fetchOne(ctx context.Context, i int, q Question) {
	f.mu.Lock()
	// Populated indexes are final; in-flight ones belong to a prior run and
	// must not be requested a second time by a refresh.
	if _, done := f.texts[i]; done || f.loading[i] {
		f.mu.Unlock()
		return
	}
	f.loading[i] = true
	f.mu.Unlock()

	text, err := f.client.Explain(ctx, upstream.ExplainRequest{
		Question:     q.Text,
		Choices:      q.Choices,
		CorrectIndex: q.CorrectIndex,
	})

	f.mu.Lock()
	delete(f.loading, i)
	switch {
	case err != nil:
		// Abandoned fetches (context canceled) still record the fallback so
		// no caller observes a permanently missing entry.
		f.texts[i] = FallbackFailed
		fallbacksStored.Inc()
		f.logger.Warn().Err(err).Int("index", i).Msg("explanation fetch failed")
	case text == "":
		f.texts[i] = FallbackUnavailable
		fallbacksStored.Inc()
	default:
		f.texts[i] = text
	}
	final := f.texts[i]
	f.mu.Unlock()

	if f.onUpdate != nil {
		f.onUpdate(i, final)
	}
}

// Texts returns a copy of the populated explanation map.
func (f *Fetcher) Texts() map[int]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]string, len(f.texts))
	for k, v := range f.texts {
		out[k] = v
	}
	return out
}

// Loading returns a copy of the in-flight flags.
func (f *Fetcher) Loading() map[int]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]bool, len(f.loading))
	for k, v := range f.loading {
		out[k] = v
	}
	return out
}

// Clear drops stored texts so a subsequent Fetch re-requests everything.
func (f *Fetcher) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = make(map[int]string)
}
