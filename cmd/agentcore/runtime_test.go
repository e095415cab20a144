package main

import (
	"context"
	"testing"

	"github.com/nexuscore/agentcore/internal/config"
)

func TestBuildProviderChainOrdersByFallbackChain(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "local",
		FallbackChain:   []string{"local", "openai"},
		Providers: map[string]config.LLMProviderConfig{
			"local":  {BaseURL: "http://localhost:11434", DefaultModel: "llama3"},
			"openai": {APIKey: "sk-test", DefaultModel: "gpt-4.1"},
		},
	}

	chain, err := buildProviderChain(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain == nil {
		t.Fatal("expected a non-nil chain")
	}
}

func TestBuildProviderChainSkipsUnconfiguredProviders(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "local",
		Providers: map[string]config.LLMProviderConfig{
			"local": {BaseURL: "http://localhost:11434", DefaultModel: "llama3"},
		},
	}

	chain, err := buildProviderChain(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain == nil {
		t.Fatal("expected a non-nil chain")
	}
}

func TestBuildProviderChainFailsWithNoProviders(t *testing.T) {
	_, err := buildProviderChain(context.Background(), config.LLMConfig{}, nil)
	if err == nil {
		t.Fatal("expected an error when no providers are configured")
	}
}

func TestBuildProviderChainRejectsUnknownProviderName(t *testing.T) {
	cfg := config.LLMConfig{
		FallbackChain: []string{"carrier-pigeon"},
		Providers: map[string]config.LLMProviderConfig{
			"carrier-pigeon": {BaseURL: "http://example.invalid"},
		},
	}

	_, err := buildProviderChain(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected an error: unknown provider names are skipped, leaving no entries")
	}
}
