// Package main provides the CLI entry point for agentcore, a bounded
// agent execution core: a failover-aware provider chain, a privacy gate,
// a tool registry, and an iterative loop tying them together, plus a
// bounded-lifetime subagent manager for fan-out work.
//
// Usage:
//
//	agentcore run --config agentcore.yaml "summarize this thread"
//	agentcore config validate --config agentcore.yaml
//	agentcore config schema
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - a bounded agent execution core",
		Version:      versionString(version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildConfigCmd(), buildWatchCmd())
	return root
}

func versionString(v, c, d string) string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
