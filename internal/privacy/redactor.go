package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Mode selects how a detection's span is replaced.
type Mode string

const (
	ModeRedact Mode = "redact"
	ModeHash   Mode = "hash"
	ModeRemove Mode = "remove"
)

// Redactor applies a Mode to a set of detections against source text.
type Redactor struct {
	// Salt is mixed into hash mode so identical values across different
	// deployments don't hash to the same token.
	Salt string
}

// NewRedactor builds a Redactor with the given salt (used only by hash mode).
func NewRedactor(salt string) *Redactor {
	return &Redactor{Salt: salt}
}

// Redact processes detections in descending start position so that
// earlier offsets remain valid as later (higher-offset) replacements are
// applied. redact(text, nil, any mode) == text.
func (r *Redactor) Redact(text string, detections []models.PIIDetection, mode Mode) string {
	if len(detections) == 0 {
		return text
	}
	ordered := append([]models.PIIDetection(nil), detections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	out := text
	for _, d := range ordered {
		if d.Start < 0 || d.End > len(out) || d.Start > d.End {
			continue
		}
		replacement := r.replacement(d, mode)
		out = out[:d.Start] + replacement + out[d.End:]
	}
	return out
}

func (r *Redactor) replacement(d models.PIIDetection, mode Mode) string {
	switch mode {
	case ModeHash:
		sum := sha256.Sum256([]byte(r.Salt + ":" + d.Value))
		return fmt.Sprintf("[HASH:%s]", hex.EncodeToString(sum[:])[:8])
	case ModeRemove:
		return ""
	default:
		return fmt.Sprintf("[%s_REDACTED]", strings.ToUpper(string(d.Type)))
	}
}
