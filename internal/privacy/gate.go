package privacy

import (
	"log/slog"
	"time"

	"github.com/nexuscore/agentcore/internal/tokens"
	"github.com/nexuscore/agentcore/pkg/models"
)

// GateConfig controls detection/redaction behavior and thresholds.
type GateConfig struct {
	Enabled          bool
	RedactionMode    Mode
	MinConfidence    float64
	RedactThreshold  float64 // minimum confidence a detection must meet to trigger redaction
	HashSalt         string
	Provider         string
	Model            string
	Endpoint         string
	Channel          string
}

// OutboundResult is what the gate returns for an outbound call.
type OutboundResult struct {
	ProcessedMessages []*models.Message
	Detections        []models.PIIDetection
	WasRedacted       bool
	AuditID           string
}

// Gate composes Detector, Redactor, and AuditLog into spec.md §4.E's
// single transform. It is bypassed entirely for local providers.
type Gate struct {
	cfg      GateConfig
	detector *Detector
	redactor *Redactor
	audit    *AuditLog
	log      *slog.Logger
}

// NewGate builds a Gate. audit may be nil (audit writes are skipped, not
// fatal) to support hosts that haven't configured a log path yet.
func NewGate(cfg GateConfig, audit *AuditLog, log *slog.Logger) *Gate {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.RedactThreshold <= 0 {
		cfg.RedactThreshold = cfg.MinConfidence
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		cfg:      cfg,
		detector: NewDetector(DetectorConfig{MinConfidence: cfg.MinConfidence}),
		redactor: NewRedactor(cfg.HashSalt),
		audit:    audit,
		log:      log,
	}
}

// Outbound gates a request before it leaves the process for a remote
// provider. isLocal bypasses the gate entirely: no detection, no
// redaction, no audit entry.
func (g *Gate) Outbound(sessionID string, messages []*models.Message, isLocal bool) OutboundResult {
	if isLocal || !g.cfg.Enabled {
		return OutboundResult{ProcessedMessages: messages}
	}

	start := time.Now()
	var allDetections []models.PIIDetection
	processed := make([]*models.Message, len(messages))
	redacted := false

	for i, m := range messages {
		if m == nil {
			continue
		}
		detections := g.detector.Detect(m.Content)
		allDetections = append(allDetections, detections...)

		out := m
		if len(detections) > 0 && g.meetsRedactThreshold(detections) {
			clone := m.Clone()
			clone.Content = g.redactor.Redact(m.Content, detections, g.cfg.RedactionMode)
			out = clone
			redacted = true
		}
		processed[i] = out
	}

	auditID := g.writeAudit(DirectionOutbound, sessionID, allDetections, redacted, messages, time.Since(start), true)

	return OutboundResult{
		ProcessedMessages: processed,
		Detections:        allDetections,
		WasRedacted:       redacted,
		AuditID:           auditID,
	}
}

// Inbound gates a single string symmetrically to Outbound.
func (g *Gate) Inbound(sessionID, content string, isLocal bool) (string, []models.PIIDetection, bool) {
	if isLocal || !g.cfg.Enabled {
		return content, nil, false
	}
	start := time.Now()
	detections := g.detector.Detect(content)
	redacted := false
	out := content
	if len(detections) > 0 && g.meetsRedactThreshold(detections) {
		out = g.redactor.Redact(content, detections, g.cfg.RedactionMode)
		redacted = true
	}
	msgs := []*models.Message{{Content: content}}
	g.writeAudit(DirectionInbound, sessionID, detections, redacted, msgs, time.Since(start), true)
	return out, detections, redacted
}

func (g *Gate) meetsRedactThreshold(detections []models.PIIDetection) bool {
	for _, d := range detections {
		if d.Confidence >= g.cfg.RedactThreshold {
			return true
		}
	}
	return false
}

func (g *Gate) writeAudit(dir Direction, sessionID string, detections []models.PIIDetection, redacted bool, messages []*models.Message, latency time.Duration, success bool) string {
	if g.audit == nil {
		return ""
	}
	types := make([]models.PIIDetectionType, 0, len(detections))
	seen := map[models.PIIDetectionType]bool{}
	for _, d := range detections {
		if !seen[d.Type] {
			seen[d.Type] = true
			types = append(types, d.Type)
		}
	}

	entry := AuditEntry{
		Timestamp:     time.Now(),
		Provider:      g.cfg.Provider,
		Model:         g.cfg.Model,
		Endpoint:      g.cfg.Endpoint,
		Direction:     dir,
		PIIDetected:   len(detections),
		PIIRedacted:   redacted,
		DetectedTypes: types,
		TokenEstimate: tokens.EstimateMessages(messages),
		LatencyMs:     latency.Milliseconds(),
		SessionID:     sessionID,
		Channel:       g.cfg.Channel,
		Success:       success,
	}

	// Audit-write failure never blocks the request; it is logged and
	// swallowed (spec.md §4.E).
	if err := g.audit.Append(entry); err != nil {
		g.log.Warn("audit log append failed", "error", err)
		return ""
	}
	return sessionID + ":" + entry.Timestamp.Format(time.RFC3339Nano)
}
