// Package compaction implements spec.md §4.G's local, LLM-free history
// compaction: when the context assembler alone cannot fit the budget, the
// older half of a session's history is replaced with a single synthetic
// summary message built from heuristic fact extraction rather than a model
// call. Chunk-sizing helpers are grounded on the token-share math this
// package already carried for the assembler's predecessor.
package compaction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nexuscore/agentcore/internal/tokens"
	"github.com/nexuscore/agentcore/pkg/models"
)

// summaryTitle is the content of the synthetic message's first line.
const summaryTitle = "conversation summary (compacted)"

// maxFactLen bounds a single extracted fact sentence so a pathologically
// long tool result doesn't balloon the summary.
const maxFactLen = 240

var (
	properNounRe    = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
	numberRe        = regexp.MustCompile(`\b\d[\d,.]*\b`)
	firstPersonRe   = regexp.MustCompile(`(?i)\b(i|i'm|i'd|i'll|i've|my|mine)\b`)
	sentenceSplitRe = regexp.MustCompile(`(?:[.!?]\s+|\n+)`)
)

// Result is the compactor's output.
type Result struct {
	Messages  []*models.Message
	ParentIDs []string // sessionId:timestamp pairs of the messages folded into the summary
	Compacted bool
}

// Compact implements spec.md §4.G. reserveTokensFloor is the minimum cost
// the retained tail must stay under while walking newest-first; sessionID
// labels the parent-id chain recorded for external lineage tracking.
//
// Idempotent: if the full history already costs ≤ reserveTokensFloor, the
// input is returned unchanged.
func Compact(sessionID string, messages []*models.Message, reserveTokensFloor int) Result {
	if tokens.EstimateMessages(messages) <= reserveTokensFloor {
		return Result{Messages: messages, Compacted: false}
	}

	retained, older := splitNewestFirst(messages, reserveTokensFloor)
	if len(older) == 0 {
		return Result{Messages: messages, Compacted: false}
	}

	facts := extractFacts(older)
	summary := renderSummary(facts)
	parentIDs := make([]string, 0, len(older))
	for _, m := range older {
		parentIDs = append(parentIDs, fmt.Sprintf("%s:%s", sessionID, m.Timestamp.Format("20060102T150405.000000000Z0700")))
	}

	summaryMsg := &models.Message{
		Role:      models.RoleSystem,
		Content:   summary,
		SessionID: sessionID,
		Metadata: map[string]any{
			models.SummaryMetadataKey: true,
			"parentIds":               parentIDs,
		},
	}

	out := make([]*models.Message, 0, 1+len(retained))
	out = append(out, summaryMsg)
	out = append(out, retained...)

	return Result{Messages: out, ParentIDs: parentIDs, Compacted: true}
}

// splitNewestFirst walks messages newest-first, retaining until the
// retained cost exceeds floor while retaining at least 2 messages. It
// returns the retained tail in original order, and the complementary
// older prefix (also in original order).
func splitNewestFirst(messages []*models.Message, floor int) (retained, older []*models.Message) {
	n := len(messages)
	cost := 0
	count := 0
	cut := n
	for i := n - 1; i >= 0; i-- {
		if cost > floor && count >= 2 {
			break
		}
		cost += tokens.EstimateMessage(messages[i])
		count++
		cut = i
	}
	return messages[cut:], messages[:cut]
}

// extractFacts walks older messages and pulls out fact-like sentences:
// user statements containing numbers, first-person preferences, or proper
// nouns; assistant confirmations/actions; non-error tool results under
// maxFactLen. Duplicates are dropped.
func extractFacts(older []*models.Message) []string {
	seen := map[string]bool{}
	var facts []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || len(s) > maxFactLen {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		facts = append(facts, s)
	}

	for _, m := range older {
		switch m.Role {
		case models.RoleUser:
			for _, sent := range splitSentences(m.Content) {
				if numberRe.MatchString(sent) || firstPersonRe.MatchString(sent) || properNounRe.MatchString(sent) {
					add(sent)
				}
			}
		case models.RoleAssistant:
			for _, sent := range splitSentences(m.Content) {
				add(sent)
			}
		case models.RoleTool:
			for _, tr := range m.ToolResult {
				if tr.IsError {
					continue
				}
				add(tr.Content)
			}
		}
	}

	return facts
}

func splitSentences(content string) []string {
	parts := sentenceSplitRe.Split(content, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func renderSummary(facts []string) string {
	var b strings.Builder
	b.WriteString(summaryTitle)
	b.WriteString("\n\nextracted facts:\n")
	if len(facts) == 0 {
		b.WriteString("- (no extractable facts)\n")
		return b.String()
	}
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}
