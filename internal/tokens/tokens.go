// Package tokens implements the single cost function agent budget
// arithmetic is built on: a cheap, deterministic stand-in for a model's
// real tokenizer.
package tokens

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/nexuscore/agentcore/pkg/models"
)

// perMessageOverhead accounts for role/separator tokens a real tokenizer
// would spend per message that a raw content-length estimate misses.
const perMessageOverhead = 4

// Estimate returns the token cost of a string: ceil(len/4), counted in
// runes rather than bytes so multi-byte UTF-8 text isn't over-charged.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

// EstimateMessage returns the token cost of a message: its serialized
// representation (keys included) plus the fixed per-message overhead.
func EstimateMessage(m *models.Message) int {
	if m == nil {
		return 0
	}
	cost := perMessageOverhead
	cost += Estimate(string(m.Role))
	cost += Estimate(m.Content)
	for _, tu := range m.ToolUse {
		cost += Estimate(tu.ID) + Estimate(tu.Name)
		if b, err := json.Marshal(tu.Arguments); err == nil {
			cost += Estimate(string(b))
		}
	}
	for _, tr := range m.ToolResult {
		cost += Estimate(tr.ToolUseID) + Estimate(tr.Content)
	}
	return cost
}

// EstimateMessages sums EstimateMessage over a sequence.
func EstimateMessages(msgs []*models.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// EstimateTools returns the baseline token overhead of advertising a set
// of tool definitions to the model, added to the budget before message
// selection per spec.md §4.F step 5.
func EstimateTools(defs []models.ToolDefinition) int {
	total := 0
	for _, d := range defs {
		total += Estimate(d.Name) + Estimate(d.Description) + Estimate(string(d.Schema))
	}
	return total
}
