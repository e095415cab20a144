// Package privacy implements the outbound/inbound PII detection, redaction,
// and audit pipeline of spec.md §4.B-E: a curated regex+checksum detector,
// an offset-preserving redactor, an append-only JSONL audit log, and a
// gate composing the three (bypassed for local providers).
package privacy

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nexuscore/agentcore/pkg/models"
)

// pattern is one named detector rule. confidence is the base confidence
// assigned to a raw regex match before any checksum/range refinement.
type pattern struct {
	typ        models.PIIDetectionType
	re         *regexp.Regexp
	confidence float64
}

var builtinPatterns = []pattern{
	{models.PIITypeSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.9},
	{models.PIITypeEmail, regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}\b`), 0.95},
	{models.PIITypePhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`), 0.85},
	{models.PIITypeCreditCard, regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`), 0.6},
	{models.PIITypeIPv4, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.7},
	{models.PIITypeDOB, regexp.MustCompile(`\b(?:0[1-9]|1[0-2])[/-](?:0[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`), 0.75},
	{models.PIITypeAPIKey, regexp.MustCompile(`\b(?:sk|pk|key|token)[-_][A-Za-z0-9]{16,}\b`), 0.8},
	{models.PIITypeLongNumber, regexp.MustCompile(`\b\d{9,}\b`), 0.4},
}

// DetectorConfig tunes detection behavior.
type DetectorConfig struct {
	// MinConfidence drops any detection below this threshold. Default 0.5.
	MinConfidence float64
	// CustomPatterns are appended to the builtin library.
	CustomPatterns []struct {
		Type       models.PIIDetectionType
		Regexp     *regexp.Regexp
		Confidence float64
	}
}

// Detector scans text for PII using a curated pattern library.
type Detector struct {
	patterns      []pattern
	minConfidence float64
}

// NewDetector builds a Detector from config, appending any custom patterns
// to the builtin library.
func NewDetector(cfg DetectorConfig) *Detector {
	min := cfg.MinConfidence
	if min <= 0 {
		min = 0.5
	}
	ps := append([]pattern(nil), builtinPatterns...)
	for _, c := range cfg.CustomPatterns {
		ps = append(ps, pattern{typ: c.Type, re: c.Regexp, confidence: c.Confidence})
	}
	return &Detector{patterns: ps, minConfidence: min}
}

// Detect scans s and returns non-overlapping, confidence-filtered
// detections sorted by start position. Overlapping spans keep only the
// highest-confidence entry.
func (d *Detector) Detect(s string) []models.PIIDetection {
	var all []models.PIIDetection
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(s, -1) {
			start, end := loc[0], loc[1]
			value := s[start:end]
			confidence := p.confidence

			switch p.typ {
			case models.PIITypeCreditCard:
				digits := onlyDigits(value)
				if len(digits) < 13 || len(digits) > 19 || !luhnValid(digits) {
					continue
				}
				confidence = 0.97
			case models.PIITypeIPv4:
				if isReservedIPv4(value) {
					confidence = 0.2
				}
			}

			if confidence < d.minConfidence {
				continue
			}
			all = append(all, models.PIIDetection{
				Type:       p.typ,
				Value:      value,
				Start:      start,
				End:        end,
				Confidence: confidence,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].Confidence > all[j].Confidence
	})

	return resolveOverlaps(all)
}

// resolveOverlaps walks detections in start order, keeping the
// highest-confidence entry for any overlapping span.
func resolveOverlaps(sorted []models.PIIDetection) []models.PIIDetection {
	var out []models.PIIDetection
	for _, d := range sorted {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if d.Start < last.End {
				if d.Confidence > last.Confidence {
					*last = d
				}
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhnValid implements the Luhn checksum used to distinguish a real
// credit-card-shaped number from an arbitrary long digit run.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(string(digits[i]))
		if err != nil {
			return false
		}
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}

// reservedIPv4Prefixes are RFC 1918 / loopback / link-local ranges: an
// IPv4-shaped match here is far more likely to be infrastructure noise
// than a user's identifying address, so it is demoted rather than
// dropped outright.
var reservedIPv4Prefixes = []string{"10.", "127.", "192.168.", "169.254."}

func isReservedIPv4(ip string) bool {
	for _, p := range reservedIPv4Prefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	if strings.HasPrefix(ip, "172.") {
		parts := strings.Split(ip, ".")
		if len(parts) >= 2 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n >= 16 && n <= 31 {
				return true
			}
		}
	}
	return false
}
