// Package providers implements spec.md §4.I: a uniform streaming chat
// interface over heterogeneous backends. Each Provider exposes its name,
// default model, a Chat call that yields a channel of StreamChunk, and an
// availability probe. Providers are partitioned into local (data never
// leaves the device; the privacy gate is bypassed) and remote.
package providers

import (
	"context"

	"github.com/nexuscore/agentcore/pkg/models"
)

// CompletionMessage is the wire-agnostic message shape Chat accepts,
// mirroring pkg/models.Message but decoupled from it so provider adapters
// don't reach into the core message type directly.
type CompletionMessage struct {
	Role       models.Role
	Content    string
	ToolUse    []models.ToolUse
	ToolResult []models.ToolResultBlock
}

// CompletionRequest bundles one turn's inputs for a provider call.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []models.ToolDefinition
	MaxTokens int
}

// Provider is the uniform interface every backend adapter implements.
type Provider interface {
	// Name is a stable, lowercase provider identifier used for routing,
	// logging, and fallback-chain attempt records.
	Name() string

	// Model returns the default model id used when a request doesn't
	// specify one.
	Model() string

	// Chat streams a completion as typed chunks. The channel is closed
	// when the stream ends, whether by message_stop or by a terminal
	// error chunk.
	Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error)

	// IsAvailable probes reachability without performing a completion.
	IsAvailable(ctx context.Context) bool

	// IsLocal reports whether this provider keeps data on-device. Local
	// providers bypass the privacy gate entirely (spec.md §4.E/§4.I).
	IsLocal() bool
}
