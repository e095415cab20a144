// Package agent implements the agent loop: the bounded iterative
// orchestrator that turns one user turn into a stream of AgentEvent
// values, calling out to the context assembler, the fallback chain, the
// tool registry, and the privacy gate along the way.
package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nexuscore/agentcore/internal/failover"
	"github.com/nexuscore/agentcore/internal/providers"
)

// ErrMaxIterations marks a run that exhausted its iteration budget. This
// is a bounded-safety termination, not a bug: the loop reports it via
// done{maxIterationsReached:true} rather than raising it to the host.
var ErrMaxIterations = errors.New("agent: max iterations exceeded")

// overflowCodes are the §4.M status-400 error codes classified as context
// overflow.
var overflowCodes = map[string]bool{
	"context_length_exceeded": true,
	"max_tokens_exceeded":     true,
	"request_too_large":       true,
}

// overflowMessagePatterns are the only case-insensitive string patterns
// the loop matches on; every other classification in this package works
// from transport metadata (status code, error code), never response body
// text.
var overflowMessagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)context (length|window|limit)`),
	regexp.MustCompile(`(?i)too many tokens`),
	regexp.MustCompile(`(?i)max.{0,10}token.{0,10}exceed`),
}

// isContextOverflow implements the §4.M classification rule. It unwraps
// a *failover.ChainError to its last underlying error so a chain that
// exhausted every provider on an overflow-shaped failure still advances
// the escalation state machine instead of being treated as a flat
// ModelTransport error.
func isContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	var chainErr *failover.ChainError
	if errors.As(err, &chainErr) {
		err = chainErr.LastErr
	}
	pe, ok := providers.AsProviderError(err)
	if !ok {
		return false
	}
	if pe.Status == 413 {
		return true
	}
	if pe.Status == 400 {
		if overflowCodes[pe.Code] {
			return true
		}
		for _, re := range overflowMessagePatterns {
			if re.MatchString(pe.Message) {
				return true
			}
		}
	}
	return false
}

// modelTransportMessage renders a ModelTransport-class error for the
// error event's message field, including the fallback attempt trail
// when the failure came from an exhausted chain (§7 FallbackExhausted).
func modelTransportMessage(err error) string {
	var chainErr *failover.ChainError
	if errors.As(err, &chainErr) {
		var parts []string
		for _, a := range chainErr.Attempts {
			parts = append(parts, fmt.Sprintf("%s=%s", a.Provider, a.Status))
		}
		return fmt.Sprintf("model provider chain exhausted [%s]: %v", strings.Join(parts, " "), chainErr.LastErr)
	}
	return err.Error()
}
