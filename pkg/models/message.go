// Package models defines the data model shared across the agent execution
// core: messages, tool use/result blocks, sessions, and the event/stream
// chunk tagged unions the loop and stream processor produce.
package models

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolUse is a model's request to invoke a tool, unique within a run by ID.
type ToolUse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultBlock carries the outcome of a prior ToolUse back to the model.
// ToolUseID must match the ID of some ToolUse produced earlier in the run.
type ToolResultBlock struct {
	ToolUseID string `json:"toolUseId"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError"`
}

// Message is the unit of conversation history the core assembles, streams
// against, and compacts. Messages are never mutated in place; compaction
// and overflow handling always produce a new sequence.
//
// Role assistant may carry zero or more ToolUse entries. Role tool carries
// exactly the results of a prior assistant turn's tool uses.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  string            `json:"sessionId"`
	ToolUse    []ToolUse         `json:"toolUse,omitempty"`
	ToolResult []ToolResultBlock `json:"toolResult,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

// SummaryMetadataKey marks a message as a compaction-synthesized summary.
const SummaryMetadataKey = "compacted_summary"

// IsSummary reports whether this message is a compaction-synthesized summary.
func (m *Message) IsSummary() bool {
	if m == nil || m.Metadata == nil {
		return false
	}
	b, _ := m.Metadata[SummaryMetadataKey].(bool)
	return b
}

// Clone returns a shallow copy of m suitable for building a new sequence
// without mutating the original (compaction and overflow handling never
// mutate messages in place).
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.ToolUse != nil {
		c.ToolUse = append([]ToolUse(nil), m.ToolUse...)
	}
	if m.ToolResult != nil {
		c.ToolResult = append([]ToolResultBlock(nil), m.ToolResult...)
	}
	return &c
}

// Session is a conversation thread. The core only reads and appends;
// archival and on-disk shape belong to an external session authority.
type Session struct {
	ID           string         `json:"id"`
	AgentID      string         `json:"agentId"`
	Channel      string         `json:"channel"`
	Messages     []*Message     `json:"messages"`
	StartedAt    time.Time      `json:"startedAt"`
	LastActivity time.Time      `json:"lastActivity"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
}
