package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nexuscore/agentcore/pkg/models"
)

func newTestAnthropicProvider(t *testing.T) *AnthropicProvider {
	t.Helper()
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	return p
}

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func TestNewAnthropicProviderAppliesDefaults(t *testing.T) {
	p := newTestAnthropicProvider(t)
	if p.Model() == "" {
		t.Fatal("expected a default model")
	}
	if p.maxRetries <= 0 {
		t.Fatal("expected a positive default retry count")
	}
}

func TestAnthropicConvertMessagesSkipsSystemRole(t *testing.T) {
	p := newTestAnthropicProvider(t)
	msgs, err := p.convertMessages([]CompletionMessage{
		{Role: models.RoleSystem, Content: "ignored"},
		{Role: models.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected system message to be dropped, got %d messages", len(msgs))
	}
}

func TestAnthropicConvertToolsRejectsInvalidSchema(t *testing.T) {
	p := newTestAnthropicProvider(t)
	_, err := p.convertTools([]models.ToolDefinition{
		{Name: "broken", Schema: json.RawMessage(`not json`)},
	})
	if err == nil {
		t.Fatal("expected an error for invalid tool schema")
	}
}

func TestAnthropicConvertToolsAcceptsValidSchema(t *testing.T) {
	p := newTestAnthropicProvider(t)
	tools, err := p.convertTools([]models.ToolDefinition{
		{Name: "lookup", Description: "looks things up", Schema: json.RawMessage(`{"type":"object","properties":{}}`)},
	})
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(tools) != 1 {
		t.Fatalf("expected one converted tool, got %d", len(tools))
	}
}

func TestAnthropicWrapErrorPassesThroughProviderError(t *testing.T) {
	p := newTestAnthropicProvider(t)
	original := NewProviderError("anthropic", "claude-x", errors.New("boom")).WithStatus(429)
	got := p.wrapError(original, "claude-x")
	if got != original {
		t.Fatal("expected wrapError to pass an existing ProviderError through unchanged")
	}
}

func TestAnthropicWrapErrorWrapsPlainError(t *testing.T) {
	p := newTestAnthropicProvider(t)
	got := p.wrapError(errors.New("network blip"), "claude-x")
	if got.Provider != "anthropic" {
		t.Fatalf("expected provider field to be set, got %+v", got)
	}
	if got.Eligibility() != Eligible {
		t.Fatalf("expected a zero-status plain error to default to Eligible, got %v", got.Eligibility())
	}
}
