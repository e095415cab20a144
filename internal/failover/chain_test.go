package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexuscore/agentcore/internal/backoff"
	"github.com/nexuscore/agentcore/internal/providers"
	"github.com/nexuscore/agentcore/pkg/models"
)

type fakeProvider struct {
	name      string
	available bool
	err       error
	delay     time.Duration
	chunks    []models.StreamChunk
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return "fake-model" }
func (f *fakeProvider) IsLocal() bool { return false }

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeProvider) Chat(ctx context.Context, req providers.CompletionRequest) (<-chan models.StreamChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan models.StreamChunk, len(f.chunks)+1)
	go func() {
		defer close(out)
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return
			}
		}
		for _, c := range f.chunks {
			out <- c
		}
	}()
	return out, nil
}

func drain(t *testing.T, ch <-chan models.StreamChunk) []models.StreamChunk {
	t.Helper()
	var out []models.StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestChainExecuteReturnsFirstHealthyProvider(t *testing.T) {
	p1 := &fakeProvider{name: "p1", available: true, chunks: []models.StreamChunk{{Type: models.ChunkTextDelta, Text: "hi"}, {Type: models.ChunkMessageStop}}}
	p2 := &fakeProvider{name: "p2", available: true}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	ch, name, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "p1" {
		t.Fatalf("expected p1 to win, got %s", name)
	}
	if len(attempts) != 1 || attempts[0].Status != "success" {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
	drain(t, ch)
}

func TestChainSkipsUnavailableProvider(t *testing.T) {
	p1 := &fakeProvider{name: "p1", available: false}
	p2 := &fakeProvider{name: "p2", available: true, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	_, name, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "p2" {
		t.Fatalf("expected p2 to win after p1 unavailable, got %s", name)
	}
	if attempts[0].Status != "unavailable" {
		t.Fatalf("expected first attempt marked unavailable, got %+v", attempts[0])
	}
}

func TestChainFailsOverOnEligibleError(t *testing.T) {
	rateLimited := providers.NewProviderError("p1", "m", errors.New("rate limited")).WithStatus(429)
	p1 := &fakeProvider{name: "p1", available: true, err: rateLimited}
	p2 := &fakeProvider{name: "p2", available: true, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}

	var calledFrom, calledTo string
	c := NewChain(ChainConfig{
		Providers:  []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}},
		OnFailover: func(from, to string, err error) { calledFrom, calledTo = from, to },
	})

	_, name, _, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "p2" {
		t.Fatalf("expected failover to p2, got %s", name)
	}
	if calledFrom != "p1" || calledTo != "p2" {
		t.Fatalf("expected onFailover(p1, p2), got (%s, %s)", calledFrom, calledTo)
	}
}

func TestChainAbortsOnHardStop(t *testing.T) {
	unauthorized := providers.NewProviderError("p1", "m", errors.New("forbidden")).WithStatus(403)
	p1 := &fakeProvider{name: "p1", available: true, err: unauthorized}
	p2 := &fakeProvider{name: "p2", available: true}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	_, _, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err == nil {
		t.Fatal("expected a terminal chain error on hard-stop")
	}
	if len(attempts) != 1 {
		t.Fatalf("expected chain to abort without trying p2, got %d attempts", len(attempts))
	}
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected a *ChainError, got %T", err)
	}
}

func TestChainAbortsWithoutFailoverOnNotEligible(t *testing.T) {
	badRequest := providers.NewProviderError("p1", "m", errors.New("teapot")).WithStatus(418)
	p1 := &fakeProvider{name: "p1", available: true, err: badRequest}
	p2 := &fakeProvider{name: "p2", available: true}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	_, _, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err == nil {
		t.Fatal("expected a terminal chain error on not-eligible status")
	}
	if len(attempts) != 1 {
		t.Fatalf("expected chain to abort without trying p2, got %d attempts", len(attempts))
	}
}

func TestChainExhaustedRaisesChainErrorWithAllAttempts(t *testing.T) {
	e1 := providers.NewProviderError("p1", "m", errors.New("boom")).WithStatus(500)
	e2 := providers.NewProviderError("p2", "m", errors.New("boom too")).WithStatus(500)
	p1 := &fakeProvider{name: "p1", available: true, err: e1}
	p2 := &fakeProvider{name: "p2", available: true, err: e2}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	_, _, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err == nil {
		t.Fatal("expected a terminal chain error")
	}
	if len(attempts) != 2 {
		t.Fatalf("expected both providers attempted, got %d", len(attempts))
	}
}

func TestChainRespectsPriorityOrder(t *testing.T) {
	low := &fakeProvider{name: "low-priority", available: true, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}
	high := &fakeProvider{name: "high-priority", available: true, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: low, Priority: 10}, {Provider: high, Priority: 1}}})

	_, name, _, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "high-priority" {
		t.Fatalf("expected lower-priority-number provider to win, got %s", name)
	}
}

// flakyProvider fails with an eligible error on its first N calls, then
// succeeds, so tests can exercise same-provider retry.
type flakyProvider struct {
	name      string
	failsLeft int
	failWith  error
	chunks    []models.StreamChunk
	calls     int
}

func (f *flakyProvider) Name() string                        { return f.name }
func (f *flakyProvider) Model() string                        { return "flaky-model" }
func (f *flakyProvider) IsLocal() bool                        { return false }
func (f *flakyProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *flakyProvider) Chat(ctx context.Context, req providers.CompletionRequest) (<-chan models.StreamChunk, error) {
	f.calls++
	if f.failsLeft > 0 {
		f.failsLeft--
		return nil, f.failWith
	}
	out := make(chan models.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func TestChainRetriesSameProviderOnEligibleErrorBeforeFailover(t *testing.T) {
	networkErr := providers.NewProviderError("p1", "m", errors.New("connection reset")).WithStatus(0)
	p1 := &flakyProvider{name: "p1", failsLeft: 2, failWith: networkErr, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}
	p2 := &fakeProvider{name: "p2", available: true}

	c := NewChain(ChainConfig{
		Providers:           []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}},
		SameProviderRetries: 2,
		RetryPolicy:         backoff.BackoffPolicy{InitialMs: 1, MaxMs: 2, Factor: 1, Jitter: 0},
	})

	_, name, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "p1" {
		t.Fatalf("expected p1 to eventually succeed after retries, got %s", name)
	}
	if p1.calls != 3 {
		t.Fatalf("expected 2 failed attempts + 1 success against p1, got %d calls", p1.calls)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d: %+v", len(attempts), attempts)
	}
}

func TestChainFailsOverAfterExhaustingSameProviderRetries(t *testing.T) {
	networkErr := providers.NewProviderError("p1", "m", errors.New("connection reset")).WithStatus(0)
	p1 := &flakyProvider{name: "p1", failsLeft: 100, failWith: networkErr}
	p2 := &fakeProvider{name: "p2", available: true, chunks: []models.StreamChunk{{Type: models.ChunkMessageStop}}}

	c := NewChain(ChainConfig{
		Providers:           []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}},
		SameProviderRetries: 1,
		RetryPolicy:         backoff.BackoffPolicy{InitialMs: 1, MaxMs: 2, Factor: 1, Jitter: 0},
	})

	_, name, attempts, err := c.Execute(context.Background(), providers.CompletionRequest{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if name != "p2" {
		t.Fatalf("expected failover to p2 after retries exhausted, got %s", name)
	}
	if p1.calls != 2 {
		t.Fatalf("expected 1 initial + 1 retry against p1, got %d calls", p1.calls)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 2 p1 attempts + 1 p2 attempt, got %d: %+v", len(attempts), attempts)
	}
}

func TestChainCheckAvailabilityProbesAllInParallel(t *testing.T) {
	p1 := &fakeProvider{name: "p1", available: true}
	p2 := &fakeProvider{name: "p2", available: false}

	c := NewChain(ChainConfig{Providers: []Entry{{Provider: p1, Priority: 1}, {Provider: p2, Priority: 2}}})

	result := c.CheckAvailability(context.Background())
	if !result["p1"] || result["p2"] {
		t.Fatalf("unexpected availability map: %+v", result)
	}
}
