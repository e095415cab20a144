// Package stream implements spec.md §4.H: decoding a provider's raw event
// stream into the typed StreamChunk vocabulary, with special handling for
// tool-call argument fragments that arrive split across multiple deltas.
// The accumulation logic is grounded on the teacher provider's inline
// content_block_delta/content_block_stop handling, generalized so every
// provider adapter can share one implementation instead of repeating it.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Accumulator assembles StreamChunk values from a provider's lower-level
// decode calls. One Accumulator is used per in-flight completion; it is not
// safe for concurrent use across goroutines.
type Accumulator struct {
	pending map[string]*pendingCall
	order   []string
	err     error
}

type pendingCall struct {
	name string
	args *jsonBuilder
}

// NewAccumulator returns a ready-to-use Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{pending: map[string]*pendingCall{}}
}

// TextDelta returns a text_delta chunk for a fragment of assistant text.
func (a *Accumulator) TextDelta(text string) models.StreamChunk {
	return models.StreamChunk{Type: models.ChunkTextDelta, Text: text}
}

// ToolUseStart begins accumulating a tool call's argument fragments. id must
// be unique within the run.
func (a *Accumulator) ToolUseStart(id, name string) models.StreamChunk {
	a.pending[id] = &pendingCall{name: name, args: newJSONBuilder()}
	a.order = append(a.order, id)
	return models.StreamChunk{Type: models.ChunkToolUseStart, ToolCallID: id, ToolName: name}
}

// ToolUseDelta appends a raw JSON fragment of a tool call's arguments. It
// does not itself emit a chunk to the caller's event stream: the complete
// argument map is only known once ToolUseEnd is called for the same id.
func (a *Accumulator) ToolUseDelta(id, partialJSON string) models.StreamChunk {
	if pc, ok := a.pending[id]; ok {
		pc.args.write(partialJSON)
	}
	return models.StreamChunk{Type: models.ChunkToolUseDelta, ToolCallID: id, ArgsFragment: partialJSON}
}

// ToolUseEnd finalizes one tool call: its complete argument fragments are
// parsed into a map and returned as a single tool_use_end chunk. A parse
// failure is recorded and surfaced as empty arguments rather than dropping
// the call, since the model still expects a ToolUse of this ID downstream.
func (a *Accumulator) ToolUseEnd(id string) models.StreamChunk {
	pc, ok := a.pending[id]
	if !ok {
		return models.StreamChunk{Type: models.ChunkToolUseEnd, ToolCallID: id, Arguments: map[string]any{}}
	}
	delete(a.pending, id)

	args := map[string]any{}
	raw := pc.args.String()
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			a.err = fmt.Errorf("stream: tool use %q (%s) produced invalid argument json: %w", id, pc.name, err)
		}
	}
	return models.StreamChunk{Type: models.ChunkToolUseEnd, ToolCallID: id, ToolName: pc.name, Arguments: args}
}

// MessageStop returns the terminal chunk of a successful stream.
func (a *Accumulator) MessageStop() models.StreamChunk {
	return models.StreamChunk{Type: models.ChunkMessageStop}
}

// Err returns the last argument-parse error observed, if any. Mid-stream
// transport errors are the caller's responsibility to propagate as a
// terminal failure (spec.md §4.H): prior chunks already emitted remain
// valid regardless of what Err reports.
func (a *Accumulator) Err() error {
	return a.err
}

// jsonBuilder accumulates partial JSON text without the overhead of
// re-validating on every fragment.
type jsonBuilder struct {
	parts []string
}

func newJSONBuilder() *jsonBuilder { return &jsonBuilder{} }

func (b *jsonBuilder) write(s string) { b.parts = append(b.parts, s) }

func (b *jsonBuilder) String() string {
	total := 0
	for _, p := range b.parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range b.parts {
		out = append(out, p...)
	}
	return string(out)
}
