package privacy

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Direction of the gated call the audit entry describes.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// AuditEntry is one append-only JSONL record. It is metadata only and
// never carries a detected value, per spec.md §4.D.
type AuditEntry struct {
	Timestamp       time.Time                  `json:"timestamp"`
	Provider        string                     `json:"provider"`
	Model           string                     `json:"model"`
	Endpoint        string                     `json:"endpoint"`
	Direction       Direction                  `json:"direction"`
	PIIDetected     int                        `json:"piiDetected"`
	PIIRedacted     bool                       `json:"piiRedacted"`
	DetectedTypes   []models.PIIDetectionType  `json:"detectedTypes"`
	TokenEstimate   int                        `json:"tokenEstimate"`
	LatencyMs       int64                      `json:"latencyMs"`
	SessionID       string                     `json:"sessionId"`
	Channel         string                     `json:"channel"`
	Success         bool                       `json:"success"`
}

// AuditLog is an append-only JSONL writer over a host-chosen filesystem
// path. Writes are serialized so each line is a complete JSON object or
// no line is written at all (spec.md §5's atomic-per-entry requirement).
// The core never mutates or deletes a written line.
type AuditLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	log    *slog.Logger
}

// OpenAuditLog opens (creating if needed) the JSONL file at path for
// appending.
func OpenAuditLog(path string, log *slog.Logger) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuditLog{file: f, writer: bufio.NewWriter(f), log: log}, nil
}

// Append writes one entry as a single JSON line. A write failure is
// logged and swallowed by the gate (spec.md §4.E); Append itself still
// returns the error so callers that care (tests, the gate's own log
// statement) can observe it.
func (a *AuditLog) Append(e AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := a.writer.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return a.writer.Flush()
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writer.Flush(); err != nil {
		return err
	}
	return a.file.Close()
}

// PrivacyScore scans entries and computes redactedCalls/callsWithPII,
// scaled to 0-100 (or 100 if no PII was ever detected).
func PrivacyScore(entries []AuditEntry) int {
	var withPII, redacted int
	for _, e := range entries {
		if e.PIIDetected > 0 {
			withPII++
			if e.PIIRedacted {
				redacted++
			}
		}
	}
	if withPII == 0 {
		return 100
	}
	return (redacted * 100) / withPII
}
