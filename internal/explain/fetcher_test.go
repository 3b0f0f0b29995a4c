package explain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merdekaquiz/quiz-gateway/internal/upstream"
)

type stubExplainClient struct {
	mu         sync.Mutex
	calls      map[string]int
	concurrent int
	peak       int
	explain    func(req upstream.ExplainRequest) (string, error)
}

func newStubExplainClient(explain func(req upstream.ExplainRequest) (string, error)) *stubExplainClient {
	return &stubExplainClient{calls: map[string]int{}, explain: explain}
}

func (s *stubExplainClient) Explain(_ context.Context, req upstream.ExplainRequest) (string, error) {
	s.mu.Lock()
	s.calls[req.Question]++
	s.concurrent++
	if s.concurrent > s.peak {
		s.peak = s.concurrent
	}
	s.mu.Unlock()

	text, err := s.explain(req)

	s.mu.Lock()
	s.concurrent--
	s.mu.Unlock()
	return text, err
}

func makeQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			Text:         fmt.Sprintf("question %d", i),
			Choices:      []string{"a", "b", "c"},
			CorrectIndex: 0,
		}
	}
	return qs
}

func TestFetchPopulatesEveryIndexExactlyOnce(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		return "karena " + req.Question, nil
	})
	f := NewFetcher(client, 3, zerolog.Nop(), nil)

	f.Fetch(context.Background(), makeQuestions(10))

	texts := f.Texts()
	require.Len(t, texts, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("karena question %d", i), texts[i])
	}
	for q, n := range client.calls {
		assert.Equal(t, 1, n, "question %q requested more than once", q)
	}
	assert.LessOrEqual(t, client.peak, 3, "worker pool must bound concurrency")
	assert.Empty(t, f.Loading())
}

func TestFetchStoresFallbackOnFailure(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		if req.Question == "question 1" {
			return "", errors.New("backend down")
		}
		return "ok", nil
	})
	f := NewFetcher(client, 3, zerolog.Nop(), nil)

	f.Fetch(context.Background(), makeQuestions(3))

	texts := f.Texts()
	assert.Equal(t, "ok", texts[0])
	assert.Equal(t, FallbackFailed, texts[1])
	assert.Equal(t, "ok", texts[2])
}

func TestFetchStoresFallbackOnEmptyText(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		return "", nil
	})
	f := NewFetcher(client, 1, zerolog.Nop(), nil)

	f.Fetch(context.Background(), makeQuestions(2))

	texts := f.Texts()
	assert.Equal(t, FallbackUnavailable, texts[0])
	assert.Equal(t, FallbackUnavailable, texts[1])
}

func TestRefreshSkipsPopulatedIndexes(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		return "text", nil
	})
	f := NewFetcher(client, 2, zerolog.Nop(), nil)
	questions := makeQuestions(4)

	f.Fetch(context.Background(), questions)
	f.Fetch(context.Background(), questions)

	for q, n := range client.calls {
		assert.Equal(t, 1, n, "question %q re-requested despite populated text", q)
	}
}

func TestRefreshSkipsInFlightIndexes(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "text", nil
	})
	f := NewFetcher(client, 1, zerolog.Nop(), nil)
	questions := makeQuestions(1)

	done := make(chan struct{})
	go func() {
		f.Fetch(context.Background(), questions)
		close(done)
	}()

	// refresh while the first request is still in flight
	<-started
	f.Fetch(context.Background(), questions)

	close(release)
	<-done

	assert.Equal(t, 1, client.calls["question 0"], "in-flight index must not be claimed by a second run")
	assert.Equal(t, "text", f.Texts()[0])
}

func TestClearForcesRefetch(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		return "text", nil
	})
	f := NewFetcher(client, 2, zerolog.Nop(), nil)
	questions := makeQuestions(3)

	f.Fetch(context.Background(), questions)
	f.Clear()
	f.Fetch(context.Background(), questions)

	for q, n := range client.calls {
		assert.Equal(t, 2, n, "question %q should be requested twice after Clear", q)
	}
}

func TestOnUpdateFiresPerIndex(t *testing.T) {
	client := newStubExplainClient(func(req upstream.ExplainRequest) (string, error) {
		return "text", nil
	})

	var mu sync.Mutex
	seen := map[int]string{}
	f := NewFetcher(client, 3, zerolog.Nop(), func(i int, text string) {
		mu.Lock()
		seen[i] = text
		mu.Unlock()
	})

	f.Fetch(context.Background(), makeQuestions(5))

	require.Len(t, seen, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "text", seen[i])
	}
}

func TestWorkersDefaultWhenNonPositive(t *testing.T) {
	f := NewFetcher(newStubExplainClient(nil), 0, zerolog.Nop(), nil)
	assert.Equal(t, DefaultWorkers, f.workers)
}
