package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Registry maps tool names to Tool implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	bus   *EventBus
}

// NewRegistry returns an empty Registry with its own event bus.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), bus: NewEventBus()}
}

// Events returns the registry's lifecycle event bus.
func (r *Registry) Events() *EventBus { return r.bus }

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns every registered tool's advertised definition, for
// passing to a provider's Chat call.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// Invoke runs the named tool with args, measuring wall-clock duration
// and catching any panic or error raised during execution. It never
// returns a Go error: every outcome — success, tool-reported failure,
// panic, or unknown name — is folded into the returned ToolResult, and
// a matching lifecycle event is published on the registry's bus.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) *models.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		r.bus.publish(Event{Kind: EventNotFound, ToolName: name})
		return &models.ToolResult{Name: name, Error: "tool not found: " + name}
	}

	params, err := json.Marshal(args)
	if err != nil {
		r.bus.publish(Event{Kind: EventError, ToolName: name})
		return &models.ToolResult{Name: name, Error: fmt.Sprintf("encode arguments: %v", err)}
	}

	start := time.Now()
	result := r.execute(ctx, t, params)
	result.DurationMs = time.Since(start).Milliseconds()
	result.Name = name

	kind := EventComplete
	if result.Error != "" {
		kind = EventError
	}
	r.bus.publish(Event{Kind: kind, ToolName: name, DurationMs: result.DurationMs})

	return result
}

// execute runs a tool's Execute call, converting a panic into an error
// result rather than propagating it to the caller.
func (r *Registry) execute(ctx context.Context, t Tool, params json.RawMessage) (result *models.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = &models.ToolResult{Error: fmt.Sprintf("tool panicked: %v", rec)}
		}
	}()

	res, err := t.Execute(ctx, params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}
	}
	if res == nil {
		return &models.ToolResult{Error: "tool returned no result"}
	}
	return res
}
