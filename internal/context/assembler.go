// Package context implements the budget-respecting message selection
// described in spec.md §4.F: the system prompt is never dropped, recalled
// memories are preferred over history, and history is walked newest-first
// under a token budget.
package context

import (
	"github.com/nexuscore/agentcore/internal/tokens"
	"github.com/nexuscore/agentcore/pkg/models"
)

// AssembleInput bundles everything the assembler needs for one pass.
type AssembleInput struct {
	SystemPrompt string
	Messages     []*models.Message
	Memories     []string
	Tools        []models.ToolDefinition
	MaxTokens    int
}

// AssembleResult is the assembler's output.
type AssembleResult struct {
	Messages      []*models.Message
	TokenEstimate int
	Truncated     bool
}

const memoriesSystemPrefix = "recalled memories:\n"

// Assemble implements spec.md §4.F's five-step algorithm.
func Assemble(in AssembleInput) AssembleResult {
	sysMsg := &models.Message{Role: models.RoleSystem, Content: in.SystemPrompt}

	var prefix []*models.Message
	prefix = append(prefix, sysMsg)

	if len(in.Memories) > 0 {
		prefix = append(prefix, &models.Message{
			Role:    models.RoleSystem,
			Content: renderMemories(in.Memories),
		})
	}

	baseline := tokens.EstimateMessages(prefix) + tokens.EstimateTools(in.Tools)

	if baseline > in.MaxTokens {
		// Even the system prompt (plus memories) exceeds budget: the
		// policy is the system prompt alone, truncated=true, caller
		// decides what to do with an over-budget estimate.
		return AssembleResult{
			Messages:      []*models.Message{sysMsg},
			TokenEstimate: tokens.EstimateMessage(sysMsg),
			Truncated:     true,
		}
	}

	total := baseline
	truncated := false

	selectedReverse := make([]*models.Message, 0, len(in.Messages))
	for i := len(in.Messages) - 1; i >= 0; i-- {
		m := in.Messages[i]
		cost := tokens.EstimateMessage(m)
		if total+cost > in.MaxTokens {
			truncated = true
			break
		}
		selectedReverse = append(selectedReverse, m)
		total += cost
	}
	tail := make([]*models.Message, len(selectedReverse))
	for i, m := range selectedReverse {
		tail[len(selectedReverse)-1-i] = m
	}

	result := make([]*models.Message, 0, len(prefix)+len(tail))
	result = append(result, prefix...)
	result = append(result, tail...)

	return AssembleResult{
		Messages:      result,
		TokenEstimate: total,
		Truncated:     truncated,
	}
}

func renderMemories(memories []string) string {
	s := memoriesSystemPrefix
	for _, m := range memories {
		s += "- " + m + "\n"
	}
	return s
}
