package privacy

import (
	"testing"

	"github.com/nexuscore/agentcore/pkg/models"
)

func TestRedactNoDetectionsIsIdentity(t *testing.T) {
	r := NewRedactor("salt")
	text := "hello world"
	if got := r.Redact(text, nil, ModeRedact); got != text {
		t.Fatalf("expected identity, got %q", got)
	}
}

func TestRedactMode(t *testing.T) {
	r := NewRedactor("salt")
	text := "my ssn is 123-45-6789 today"
	dets := []models.PIIDetection{{Type: models.PIITypeSSN, Value: "123-45-6789", Start: 10, End: 21}}
	got := r.Redact(text, dets, ModeRedact)
	want := "my ssn is [SSN_REDACTED] today"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHashModeDeterministic(t *testing.T) {
	r := NewRedactor("fixed-salt")
	text := "ssn 123-45-6789"
	dets := []models.PIIDetection{{Type: models.PIITypeSSN, Value: "123-45-6789", Start: 4, End: 15}}
	a := r.Redact(text, dets, ModeHash)
	b := r.Redact(text, dets, ModeHash)
	if a != b {
		t.Fatalf("hash mode not deterministic: %q vs %q", a, b)
	}
}

func TestRemoveMode(t *testing.T) {
	r := NewRedactor("salt")
	text := "call 555-123-4567 now"
	dets := []models.PIIDetection{{Type: models.PIITypePhone, Value: "555-123-4567", Start: 5, End: 17}}
	got := r.Redact(text, dets, ModeRemove)
	want := "call  now"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRedactDescendingOrderKeepsOffsetsValid(t *testing.T) {
	r := NewRedactor("salt")
	text := "a@b.com and c@d.com"
	dets := []models.PIIDetection{
		{Type: models.PIITypeEmail, Value: "a@b.com", Start: 0, End: 7},
		{Type: models.PIITypeEmail, Value: "c@d.com", Start: 12, End: 19},
	}
	got := r.Redact(text, dets, ModeRedact)
	want := "[EMAIL_REDACTED] and [EMAIL_REDACTED]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
