// Package failover implements spec.md §4.J/§4.K: a priority-ordered
// provider chain with HTTP-status failover classification, and a
// periodic health monitor deriving per-capability and overall status
// from the same provider set. Grounded on the teacher's
// FailoverOrchestrator (internal/agent/failover.go), generalized from
// its string-matched classifyProviderError to the status-bucket table
// the core's Provider abstraction now carries on every wrapped error.
package failover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nexuscore/agentcore/internal/backoff"
	"github.com/nexuscore/agentcore/internal/providers"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Entry pairs a provider with its priority; lower values are tried first.
type Entry struct {
	Provider providers.Provider
	Priority int
}

// ChainConfig configures a Chain.
type ChainConfig struct {
	Providers      []Entry
	AttemptTimeout time.Duration
	OnFailover     func(from, to string, err error)

	// OnAttempt, if set, is called after every provider attempt (success,
	// error, or timeout; not for providers skipped as unavailable) so a
	// caller can record request metrics without the chain importing a
	// metrics package itself.
	OnAttempt func(provider, model, status string, duration time.Duration)

	// SameProviderRetries bounds how many extra times Execute retries the
	// same provider, with backoff between them, before moving on to the
	// next one in priority order. Only failover-eligible errors are
	// retried this way; a blip shouldn't rotate through the whole chain.
	// Zero disables same-provider retry (fail over immediately, per
	// spec.md §4.J).
	SameProviderRetries int

	// RetryPolicy controls the backoff between same-provider retries.
	// Zero value falls back to backoff.DefaultPolicy().
	RetryPolicy backoff.BackoffPolicy
}

// Attempt records one provider's outcome within a single Execute call.
type Attempt struct {
	Provider string
	Status   string // "unavailable" | "success" | "error" | "timeout"
	Duration time.Duration
	Err      error
}

// ChainError is the terminal error Execute raises when no provider
// satisfies the request; it carries every attempt made so callers can
// report a complete trail instead of only the last failure.
type ChainError struct {
	Attempts []Attempt
	LastErr  error
}

func (e *ChainError) Error() string {
	var parts []string
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s:%s", a.Provider, a.Status))
	}
	return fmt.Sprintf("failover chain exhausted [%s]: %v", strings.Join(parts, " "), e.LastErr)
}

func (e *ChainError) Unwrap() error { return e.LastErr }

// Chain executes a chat request against the first healthy, responsive
// provider in priority order, failing over on transient errors.
type Chain struct {
	entries             []Entry
	attemptTimeout      time.Duration
	onFailover          func(from, to string, err error)
	onAttempt           func(provider, model, status string, duration time.Duration)
	sameProviderRetries int
	retryPolicy         backoff.BackoffPolicy
}

// NewChain sorts entries by ascending priority and returns a ready Chain.
func NewChain(cfg ChainConfig) *Chain {
	entries := make([]Entry, len(cfg.Providers))
	copy(entries, cfg.Providers)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })

	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	policy := cfg.RetryPolicy
	if policy == (backoff.BackoffPolicy{}) {
		policy = backoff.DefaultPolicy()
	}

	return &Chain{
		entries:             entries,
		attemptTimeout:      timeout,
		onFailover:          cfg.OnFailover,
		onAttempt:           cfg.OnAttempt,
		sameProviderRetries: cfg.SameProviderRetries,
		retryPolicy:         policy,
	}
}

// Providers returns the chain's providers in priority order.
func (c *Chain) Providers() []providers.Provider {
	out := make([]providers.Provider, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Provider
	}
	return out
}

// Execute tries each provider in priority order per spec.md §4.J.
func (c *Chain) Execute(ctx context.Context, req providers.CompletionRequest) (<-chan models.StreamChunk, string, []Attempt, error) {
	var attempts []Attempt
	var lastErr error

	for i, entry := range c.entries {
		p := entry.Provider

		if !p.IsAvailable(ctx) {
			attempts = append(attempts, Attempt{Provider: p.Name(), Status: "unavailable"})
			continue
		}

		var ch <-chan models.StreamChunk
		var err error
		var eligibility providers.FailoverEligibility

		for retry := 0; ; retry++ {
			start := time.Now()
			ch, err = c.race(ctx, p, req)
			duration := time.Since(start)

			if err == nil {
				attempts = append(attempts, Attempt{Provider: p.Name(), Status: "success", Duration: duration})
				if c.onAttempt != nil {
					c.onAttempt(p.Name(), p.Model(), "success", duration)
				}
				break
			}

			lastErr = err
			status := "error"
			if ctx.Err() == nil && errorsIsDeadlineExceeded(err) {
				status = "timeout"
			}
			attempts = append(attempts, Attempt{Provider: p.Name(), Status: status, Duration: duration, Err: err})
			if c.onAttempt != nil {
				c.onAttempt(p.Name(), p.Model(), status, duration)
			}

			eligibility = classify(err)
			if eligibility != providers.Eligible || retry >= c.sameProviderRetries {
				break
			}
			if sleepErr := backoff.SleepWithBackoff(ctx, c.retryPolicy, retry+1); sleepErr != nil {
				return nil, "", attempts, &ChainError{Attempts: attempts, LastErr: sleepErr}
			}
		}

		if err == nil {
			return ch, p.Name(), attempts, nil
		}

		switch eligibility {
		case providers.HardStop:
			return nil, "", attempts, &ChainError{Attempts: attempts, LastErr: err}
		case providers.NotEligible:
			return nil, "", attempts, &ChainError{Attempts: attempts, LastErr: err}
		case providers.Eligible:
			if i+1 < len(c.entries) && c.onFailover != nil {
				c.onFailover(p.Name(), c.entries[i+1].Provider.Name(), err)
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, "", attempts, &ChainError{Attempts: attempts, LastErr: lastErr}
}

// race runs one provider's Chat call against the chain's per-attempt
// timeout, returning a context.DeadlineExceeded-flavored error if it
// loses.
func (c *Chain) race(ctx context.Context, p providers.Provider, req providers.CompletionRequest) (<-chan models.StreamChunk, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	ch, err := p.Chat(attemptCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	// cancel is deferred to the consumer's lifetime via a wrapping channel
	// so the attempt timeout also bounds stream consumption, not just
	// call setup.
	out := make(chan models.StreamChunk)
	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case chunk, ok := <-ch:
				if !ok {
					return
				}
				out <- chunk
				if chunk.Type == models.ChunkMessageStop {
					return
				}
			case <-attemptCtx.Done():
				out <- models.StreamChunk{Type: models.ChunkMessageStop, StopReason: "error", Err: attemptCtx.Err()}
				return
			}
		}
	}()
	return out, nil
}

// CheckAvailability probes every provider in parallel without executing.
func (c *Chain) CheckAvailability(ctx context.Context) map[string]bool {
	type result struct {
		name string
		ok   bool
	}
	results := make(chan result, len(c.entries))
	for _, entry := range c.entries {
		go func(p providers.Provider) {
			results <- result{name: p.Name(), ok: p.IsAvailable(ctx)}
		}(entry.Provider)
	}

	out := make(map[string]bool, len(c.entries))
	for range c.entries {
		r := <-results
		out[r.name] = r.ok
	}
	return out
}

func classify(err error) providers.FailoverEligibility {
	if pe, ok := providers.AsProviderError(err); ok {
		return pe.Eligibility()
	}
	return providers.ClassifyStatusCode(0)
}

func errorsIsDeadlineExceeded(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
