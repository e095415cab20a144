package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadBasicConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", `
version: 1
server:
  host: 0.0.0.0
  health_port: 8080
agent:
  max_iterations: 20
  budget: 100000
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: sk-test
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HealthPort != 8080 {
		t.Fatalf("unexpected health port: %d", cfg.Server.HealthPort)
	}
	if cfg.Agent.MaxIterations != 20 {
		t.Fatalf("unexpected max iterations: %d", cfg.Agent.MaxIterations)
	}
	if cfg.LLM.Providers["anthropic"].APIKey != "sk-test" {
		t.Fatalf("unexpected provider config: %+v", cfg.LLM.Providers["anthropic"])
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", "version: 99\n")

	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("expected version error")
	}
	if _, ok := err.(*VersionError); !ok {
		t.Fatalf("expected *VersionError, got %T: %v", err, err)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeTempConfig(t, dir, "llm.yaml", `
llm:
  default_provider: anthropic
`)
	path := writeTempConfig(t, dir, "config.yaml", `
version: 1
$include: llm.yaml
server:
  health_port: 9090
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("expected included llm config to merge, got %+v", cfg.LLM)
	}
	if cfg.Server.HealthPort != 9090 {
		t.Fatalf("expected base file to win over include, got %d", cfg.Server.HealthPort)
	}
}

func TestLoadResolvesVaultReferences(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", `
version: 1
llm:
  providers:
    anthropic:
      api_key: "$vault:anthropic_key"
`)

	cfg, err := Load(path, MapVaultResolver{"anthropic_key": "resolved-secret"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "resolved-secret" {
		t.Fatalf("expected resolved vault value, got %q", got)
	}
}

func TestLoadFailsOnUnresolvedVaultReference(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", `
version: 1
llm:
  providers:
    anthropic:
      api_key: "$vault:missing_key"
`)

	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for unresolved vault reference")
	}
}

func TestJSONSchema(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	if len(schema) == 0 {
		t.Fatal("expected non-empty schema")
	}
}
