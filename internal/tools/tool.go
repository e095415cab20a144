// Package tools implements spec.md §4.L: named tool dispatch behind a
// uniform result envelope. Grounded on the teacher's ToolRegistry
// (internal/agent/tool_registry.go) Register/Get/Execute shape, trimmed
// to the core's narrower contract: the registry never validates
// parameters itself (tools do) and every invocation returns a
// ToolResult rather than an error, even on panic.
package tools

import (
	"context"
	"encoding/json"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Tool is one named capability the agent loop can invoke.
type Tool interface {
	// Name is the identifier the model refers to the tool by.
	Name() string

	// Description is shown to the model when tools are advertised.
	Description() string

	// Schema is the tool's own JSON Schema for its parameters. The
	// registry never validates against it; a well-behaved tool
	// validates its own params inside Execute.
	Schema() json.RawMessage

	// Execute runs the tool. ctx carries the run's cancellation signal.
	// A returned error is treated as an unexpected failure by the
	// registry and folded into the result envelope; tools should
	// prefer encoding expected failures directly in the result.
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error)
}

// Definition renders a Tool's advertised shape as the wire-agnostic
// models.ToolDefinition providers consume.
func Definition(t Tool) models.ToolDefinition {
	return models.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Schema:      t.Schema(),
	}
}
