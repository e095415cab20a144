package main

import (
	"testing"

	"github.com/nexuscore/agentcore/internal/testharness"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "config", "watch"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildConfigCmdIncludesSubcommands(t *testing.T) {
	cmd := buildConfigCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"validate", "schema"} {
		if !names[name] {
			t.Fatalf("expected config subcommand %q to be registered", name)
		}
	}
}

func TestDefaultConfigPathFallsBackWithoutEnv(t *testing.T) {
	t.Setenv("AGENTCORE_CONFIG", "")
	if got := defaultConfigPath(); got != "agentcore.yaml" {
		t.Fatalf("expected default agentcore.yaml, got %q", got)
	}
}

func TestDefaultConfigPathHonorsEnv(t *testing.T) {
	t.Setenv("AGENTCORE_CONFIG", "/tmp/custom.yaml")
	if got := defaultConfigPath(); got != "/tmp/custom.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestVersionStringFormat(t *testing.T) {
	got := versionString("1.2.3", "abc1234", "2026-01-01")
	testharness.NewGolden(t).Assert(got)
}
