package agent

import (
	"context"
	"errors"
	"time"

	agentcontext "github.com/nexuscore/agentcore/internal/context"
	"github.com/nexuscore/agentcore/internal/compaction"
	"github.com/nexuscore/agentcore/internal/failover"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/privacy"
	"github.com/nexuscore/agentcore/internal/providers"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/tools/memory"
	"github.com/nexuscore/agentcore/pkg/models"
	"go.opentelemetry.io/otel/trace"
)

// overflowMode is the §4.M escalation state machine.
type overflowMode int

const (
	overflowNone overflowMode = iota
	overflowCapTools
	overflowCompact
	overflowGiveUp
)

func (m overflowMode) next() overflowMode {
	switch m {
	case overflowNone:
		return overflowCapTools
	case overflowCapTools:
		return overflowCompact
	default:
		return overflowGiveUp
	}
}

// RunInput is one call's parameters: the new user turn plus whatever
// history the session authority already holds.
type RunInput struct {
	SessionID string
	Channel   string
	Message   string
	History   []*models.Message
}

// Loop is spec.md §4.M's agent loop: it streams a reply to one user turn
// by repeatedly assembling context, calling the provider chain, and
// executing any tools the model requests, until the model stops asking
// for tools or the run is cancelled, overflows past recovery, or exceeds
// its iteration bound.
type Loop struct {
	chain  *failover.Chain
	tools  *tools.Registry
	gate   *privacy.Gate
	recall memory.Recaller
	store  SessionStore
	tracer *observability.Tracer
	cfg    LoopConfig
}

// New builds a Loop. gate, recall, store, and tracer may be nil: a nil
// gate disables PII redaction, a nil recall skips the once-per-run
// memory query, a nil store persists nothing, a nil tracer skips span
// creation entirely.
func New(chain *failover.Chain, registry *tools.Registry, gate *privacy.Gate, recall memory.Recaller, store SessionStore, tracer *observability.Tracer, cfg LoopConfig) *Loop {
	if store == nil {
		store = noopStore{}
	}
	return &Loop{chain: chain, tools: registry, gate: gate, recall: recall, store: store, tracer: tracer, cfg: cfg.withDefaults()}
}

// Run starts the loop and returns a channel of AgentEvent values in
// strict issue order. The channel is closed after exactly one terminal
// event (done, always preceded by error when the run ended abnormally).
func (l *Loop) Run(ctx context.Context, in RunInput) <-chan models.AgentEvent {
	sink := NewChannelSink(0)
	go func() {
		defer sink.Close()
		l.run(ctx, in, sink)
	}()
	return sink.Events()
}

// runState is the mutable state threaded across one run's iterations.
type runState struct {
	messages           []*models.Message
	pendingToolResults []*models.Message
	overflow           overflowMode
	iteration          int
	seq                uint64
	runID              string
}

func (l *Loop) run(ctx context.Context, in RunInput, sink EventSink) {
	st := &runState{
		messages: append(append([]*models.Message{}, in.History...), &models.Message{
			Role:      models.RoleUser,
			Content:   in.Message,
			Timestamp: time.Now(),
			SessionID: in.SessionID,
		}),
		runID: in.SessionID,
	}

	l.emit(sink, st, models.EventThinking, func(e *models.AgentEvent) { e.Thinking = &models.ThinkingPayload{Note: "assembling context"} })

	memories := l.recallMemories(ctx, sink, st, in.Message)

	for {
		if ctx.Err() != nil {
			l.abort(sink, st)
			return
		}
		if st.iteration >= l.cfg.MaxIterations {
			l.emitError(sink, st, ErrMaxIterations.Error(), false, false)
			l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
				e.Done = &models.DonePayload{Iterations: st.iteration, MaxIterationsReached: true}
			})
			return
		}

		assembled, toolDefs := l.assemble(st, memories)

		l.emit(sink, st, models.EventThinking, func(e *models.AgentEvent) { e.Thinking = &models.ThinkingPayload{Note: "waiting on model"} })

		ch, err := l.tracedStream(ctx, st.runID, assembled, toolDefs)
		if err != nil {
			if st.overflow != overflowGiveUp && isContextOverflow(err) {
				st.overflow = st.overflow.next()
				if st.overflow == overflowGiveUp {
					l.emitError(sink, st, "context overflow persisted after compaction: "+err.Error(), false, false)
					l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
						e.Done = &models.DonePayload{Iterations: st.iteration, Error: true}
					})
					return
				}
				st.iteration++
				continue
			}
			l.emitError(sink, st, modelTransportMessage(err), false, false)
			l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
				e.Done = &models.DonePayload{Iterations: st.iteration, Error: true}
			})
			return
		}

		assistantText, toolUses, streamErr, cancelled := l.consume(ctx, sink, st, ch)
		if cancelled {
			l.abort(sink, st)
			return
		}
		if streamErr != nil {
			if st.overflow != overflowGiveUp && isContextOverflow(streamErr) {
				st.overflow = st.overflow.next()
				if st.overflow == overflowGiveUp {
					l.emitError(sink, st, "context overflow persisted after compaction: "+streamErr.Error(), false, false)
					l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
						e.Done = &models.DonePayload{Iterations: st.iteration, Error: true}
					})
					return
				}
				st.iteration++
				continue
			}
			l.emitError(sink, st, streamErr.Error(), false, false)
			l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
				e.Done = &models.DonePayload{Iterations: st.iteration, Error: true}
			})
			return
		}

		st.messages = append(st.messages, &models.Message{
			Role:      models.RoleAssistant,
			Content:   assistantText,
			Timestamp: time.Now(),
			SessionID: in.SessionID,
			ToolUse:   toolUses,
		})
		_ = l.store.Append(ctx, in.SessionID, st.messages[len(st.messages)-1])

		if len(toolUses) == 0 {
			l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
				e.Done = &models.DonePayload{FinalText: assistantText, Iterations: st.iteration + 1}
			})
			return
		}

		if aborted := l.executeTools(ctx, sink, st, in.SessionID, toolUses); aborted {
			l.abort(sink, st)
			return
		}

		st.overflow = overflowNone
		st.iteration++
	}
}

// recallMemories queries the memory collaborator at most once per run.
// A failure is non-fatal (spec.md §7 MemoryRecall).
func (l *Loop) recallMemories(ctx context.Context, sink EventSink, st *runState, query string) []string {
	if l.recall == nil {
		return nil
	}
	snippets, err := l.recall.Recall(ctx, query, l.cfg.MemoryRecallLimit)
	if err != nil {
		l.emitError(sink, st, "memory recall failed: "+err.Error(), true, false)
		return nil
	}
	return snippets
}

// assemble builds this iteration's model input, applying whichever
// overflow-mode pre-processing is currently active.
func (l *Loop) assemble(st *runState, memories []string) (agentcontext.AssembleResult, []models.ToolDefinition) {
	allMessages := append(append([]*models.Message{}, st.messages...), st.pendingToolResults...)

	switch st.overflow {
	case overflowCapTools:
		allMessages = capToolResults(allMessages, l.cfg.ToolResultCharCap)
	case overflowCompact:
		floor := int(float64(l.cfg.Budget) * l.cfg.OverflowReserveRatio)
		result := compaction.Compact(st.runID, allMessages, floor)
		allMessages = result.Messages
	}

	var toolDefs []models.ToolDefinition
	if l.tools != nil {
		toolDefs = l.tools.Definitions()
	}

	assembled := agentcontext.Assemble(agentcontext.AssembleInput{
		SystemPrompt: l.cfg.SystemPrompt,
		Messages:     allMessages,
		Memories:     memories,
		Tools:        toolDefs,
		MaxTokens:    l.cfg.Budget,
	})
	return assembled, toolDefs
}

// capToolResults implements cap_tools overflow mode: every tool-role
// message's content over the character cap is replaced with a prefix
// plus a truncation marker. Messages are never mutated in place.
func capToolResults(messages []*models.Message, charCap int) []*models.Message {
	out := make([]*models.Message, len(messages))
	for i, m := range messages {
		if m.Role != models.RoleTool || len(m.Content) <= charCap {
			out[i] = m
			continue
		}
		clone := m.Clone()
		clone.Content = m.Content[:charCap] + "... [truncated]"
		out[i] = clone
	}
	return out
}

// tracedStream wraps stream with a span covering the full chain
// execution, so a slow or failing provider attempt is visible the same
// way the teacher traces every outbound LLM call.
func (l *Loop) tracedStream(ctx context.Context, sessionID string, assembled agentcontext.AssembleResult, toolDefs []models.ToolDefinition) (<-chan models.StreamChunk, error) {
	if l.tracer == nil {
		return l.stream(ctx, sessionID, assembled, toolDefs)
	}
	var firstProvider string
	if chainProviders := l.chain.Providers(); len(chainProviders) > 0 {
		firstProvider = chainProviders[0].Name()
	}
	spanCtx, span := l.tracer.TraceLLMRequest(ctx, firstProvider, "")
	defer span.End()
	ch, err := l.stream(spanCtx, sessionID, assembled, toolDefs)
	if err != nil {
		l.tracer.RecordError(span, err)
	}
	return ch, err
}

// stream converts the assembled context into a provider request and
// executes it against the fallback chain.
func (l *Loop) stream(ctx context.Context, sessionID string, assembled agentcontext.AssembleResult, toolDefs []models.ToolDefinition) (<-chan models.StreamChunk, error) {
	system, rest := splitSystem(assembled.Messages)

	isLocal := l.chainIsAllLocal()
	gated := rest
	if l.gate != nil {
		out := l.gate.Outbound(sessionID, rest, isLocal)
		gated = out.ProcessedMessages
	}

	req := providers.CompletionRequest{
		System:    system,
		Messages:  toCompletionMessages(gated),
		Tools:     toolDefs,
		MaxTokens: l.cfg.MaxResponseTokens,
	}

	ch, _, _, err := l.chain.Execute(ctx, req)
	return ch, err
}

func (l *Loop) chainIsAllLocal() bool {
	if l.chain == nil {
		return false
	}
	for _, p := range l.chain.Providers() {
		if !p.IsLocal() {
			return false
		}
	}
	return len(l.chain.Providers()) > 0
}

func splitSystem(messages []*models.Message) (string, []*models.Message) {
	var system string
	var rest []*models.Message
	for i, m := range messages {
		if m.Role == models.RoleSystem {
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

func toCompletionMessages(messages []*models.Message) []providers.CompletionMessage {
	out := make([]providers.CompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = providers.CompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolUse:    m.ToolUse,
			ToolResult: m.ToolResult,
		}
	}
	return out
}

// consume drains one iteration's stream chunks, accumulating text and
// completed tool-use blocks while emitting text events in order.
func (l *Loop) consume(ctx context.Context, sink EventSink, st *runState, ch <-chan models.StreamChunk) (assistantText string, toolUses []models.ToolUse, streamErr error, cancelled bool) {
	for chunk := range ch {
		if ctx.Err() != nil {
			cancelled = true
			continue // drain remaining chunks rather than leave the producer blocked
		}

		switch chunk.Type {
		case models.ChunkTextDelta:
			if chunk.Text == "" {
				continue
			}
			assistantText += chunk.Text
			l.emit(sink, st, models.EventText, func(e *models.AgentEvent) { e.Text = &models.TextPayload{Delta: chunk.Text} })
		case models.ChunkToolUseEnd:
			toolUses = append(toolUses, models.ToolUse{ID: chunk.ToolCallID, Name: chunk.ToolName, Arguments: chunk.Arguments})
		case models.ChunkMessageStop:
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
		}
	}
	return assistantText, toolUses, streamErr, cancelled
}

// executeTools runs every requested tool call sequentially, in the order
// the model emitted them (spec.md §5), appending one tool-role message
// per call. Returns true if cancellation was observed between calls.
func (l *Loop) executeTools(ctx context.Context, sink EventSink, st *runState, sessionID string, toolUses []models.ToolUse) (cancelled bool) {
	for _, tu := range toolUses {
		l.emit(sink, st, models.EventToolUse, func(e *models.AgentEvent) { e.ToolUse = &models.ToolUsePayload{ToolUse: tu} })

		toolCtx := ctx
		var span trace.Span
		if l.tracer != nil {
			toolCtx, span = l.tracer.TraceToolExecution(ctx, tu.Name)
		}
		result := l.tools.Invoke(toolCtx, tu.Name, tu.Arguments)
		if span != nil {
			if result.IsError() {
				l.tracer.RecordError(span, errors.New(result.Error))
			}
			span.End()
		}

		l.emit(sink, st, models.EventToolResult, func(e *models.AgentEvent) {
			e.Result = &models.ToolResultPayload{
				ToolUseID:  tu.ID,
				Result:     result.Result,
				Error:      result.Error,
				IsError:    result.IsError(),
				DurationMs: result.DurationMs,
			}
		})

		content := result.Result
		if result.IsError() {
			content = "Error: " + result.Error
		}

		msg := &models.Message{
			Role:      models.RoleTool,
			Content:   content,
			Timestamp: time.Now(),
			SessionID: sessionID,
			ToolResult: []models.ToolResultBlock{{
				ToolUseID: tu.ID,
				Content:   content,
				IsError:   result.IsError(),
			}},
		}
		st.messages = append(st.messages, msg)
		_ = l.store.Append(ctx, sessionID, msg)

		if ctx.Err() != nil {
			cancelled = true
		}
	}
	st.pendingToolResults = nil
	return cancelled
}

func (l *Loop) abort(sink EventSink, st *runState) {
	l.emitError(sink, st, "run cancelled", false, true)
	l.emit(sink, st, models.EventDone, func(e *models.AgentEvent) {
		e.Done = &models.DonePayload{Iterations: st.iteration, Aborted: true}
	})
}

func (l *Loop) emitError(sink EventSink, st *runState, message string, recoverable bool, aborted bool) {
	l.emit(sink, st, models.EventError, func(e *models.AgentEvent) {
		e.Error = &models.ErrorPayload{Message: message, Recoverable: recoverable, Aborted: aborted}
	})
}

func (l *Loop) emit(sink EventSink, st *runState, typ models.AgentEventType, set func(*models.AgentEvent)) {
	st.seq++
	e := models.AgentEvent{Type: typ, Time: time.Now(), Sequence: st.seq, RunID: st.runID, Iter: st.iteration}
	set(&e)
	sink.Emit(e)
}
