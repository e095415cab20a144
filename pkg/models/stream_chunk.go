package models

// StreamChunk is one typed record decoded from a model provider's byte
// stream by the stream processor (§4.H). tool_use_delta chunks carry raw
// argument fragments that the processor accumulates per ToolCallID and
// flushes as a single tool_use_end once the model closes the block.
type StreamChunk struct {
	Type StreamChunkType `json:"type"`

	// TextDelta payload.
	Text string `json:"text,omitempty"`

	// ToolUseStart / ToolUseEnd payload.
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`

	// ToolUseDelta payload: a raw fragment of the argument JSON.
	ArgsFragment string `json:"argsFragment,omitempty"`

	// ToolUseEnd payload: the fully merged argument map.
	Arguments map[string]any `json:"arguments,omitempty"`

	// MessageStop payload. Err is set when the stream ended on a terminal
	// transport failure rather than a clean message_stop event; prior
	// chunks already emitted on the channel remain valid (spec.md §4.H).
	StopReason string `json:"stopReason,omitempty"`
	Err        error  `json:"-"`
}

// StreamChunkType is the tagged union spec.md §3 names for provider byte
// streams once decoded.
type StreamChunkType string

const (
	ChunkTextDelta     StreamChunkType = "text_delta"
	ChunkToolUseStart  StreamChunkType = "tool_use_start"
	ChunkToolUseDelta  StreamChunkType = "tool_use_delta"
	ChunkToolUseEnd    StreamChunkType = "tool_use_end"
	ChunkMessageStop   StreamChunkType = "message_stop"
)
