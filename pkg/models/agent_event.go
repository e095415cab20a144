package models

import "time"

// AgentEvent is the tagged union the loop emits, one per call to its event
// sink. Type is the discriminator; exactly one payload field is populated
// for a given Type. Sequence is monotonic within a run, giving the stream a
// total order even across cooperating goroutines.
type AgentEvent struct {
	Type     AgentEventType `json:"type"`
	Time     time.Time      `json:"time"`
	Sequence uint64         `json:"seq"`
	RunID    string         `json:"runId,omitempty"`
	Iter     int            `json:"iter,omitempty"`

	Thinking *ThinkingPayload `json:"thinking,omitempty"`
	Text     *TextPayload     `json:"text,omitempty"`
	ToolUse  *ToolUsePayload  `json:"toolUse,omitempty"`
	Result   *ToolResultPayload `json:"toolResult,omitempty"`
	Error    *ErrorPayload    `json:"error,omitempty"`
	Done     *DonePayload     `json:"done,omitempty"`
}

// AgentEventType is the six-member tagged union spec.md §3 names.
type AgentEventType string

const (
	EventThinking   AgentEventType = "thinking"
	EventText       AgentEventType = "text"
	EventToolUse    AgentEventType = "tool_use"
	EventToolResult AgentEventType = "tool_result"
	EventError      AgentEventType = "error"
	EventDone       AgentEventType = "done"
)

// ThinkingPayload marks a point the loop is working without user-visible
// text yet (assembling context, awaiting the first stream chunk).
type ThinkingPayload struct {
	Note string `json:"note,omitempty"`
}

// TextPayload carries one accumulated text delta from the model stream.
type TextPayload struct {
	Delta string `json:"delta"`
}

// ToolUsePayload announces a tool the model has asked to invoke.
type ToolUsePayload struct {
	ToolUse ToolUse `json:"toolUse"`
}

// ToolResultPayload carries the outcome of executing one ToolUse.
type ToolResultPayload struct {
	ToolUseID  string `json:"toolUseId"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	IsError    bool   `json:"isError"`
	DurationMs int64  `json:"durationMs"`
}

// ErrorPayload reports a non-terminal or terminal failure. Recoverable
// marks errors (e.g. memory recall failure) that do not end the run.
type ErrorPayload struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Aborted     bool   `json:"aborted,omitempty"`
}

// DonePayload is the run's terminal event, exactly one per run.
type DonePayload struct {
	FinalText          string `json:"finalText,omitempty"`
	Iterations         int    `json:"iterations"`
	Aborted            bool   `json:"aborted,omitempty"`
	Error              bool   `json:"error,omitempty"`
	MaxIterationsReached bool `json:"maxIterationsReached,omitempty"`
}
