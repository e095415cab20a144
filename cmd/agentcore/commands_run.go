package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/pkg/models"
	"github.com/spf13/cobra"
)

// buildRunCmd exercises the loop end-to-end against the configured
// provider chain for manual verification: one message in, the full
// event stream out.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run one message through the agent loop and print its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), configPath, sessionID, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the config file")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID to append this run to (default: a new session)")
	return cmd
}

func runOnce(ctx context.Context, configPath, sessionID, message string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout())
		defer closeCancel()
		_ = rt.Close(closeCtx)
	}()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	loop := rt.newLoop()
	events := loop.Run(ctx, agent.RunInput{SessionID: sessionID, Message: message})

	sawError := false
	for e := range events {
		printEvent(e, rt.metrics, &sawError)
	}
	if sawError {
		rt.metrics.RecordRunAttempt("failed")
	} else {
		rt.metrics.RecordRunAttempt("success")
	}
	return nil
}

func printEvent(e models.AgentEvent, metrics *observability.Metrics, sawError *bool) {
	switch e.Type {
	case models.EventThinking:
		fmt.Fprintln(os.Stderr, "...")
	case models.EventText:
		if e.Text != nil {
			fmt.Print(e.Text.Delta)
		}
	case models.EventToolUse:
		if e.ToolUse != nil {
			fmt.Fprintf(os.Stderr, "\n[tool] %s\n", e.ToolUse.ToolUse.Name)
		}
	case models.EventToolResult:
		if e.Result != nil && e.Result.IsError {
			fmt.Fprintf(os.Stderr, "[tool error] %s\n", e.Result.Error)
		}
	case models.EventError:
		*sawError = true
		if e.Error != nil {
			fmt.Fprintf(os.Stderr, "\n[error] %s\n", e.Error.Message)
			metrics.RecordError("agent", "run_error")
		}
	case models.EventDone:
		fmt.Println()
		if e.Done != nil && e.Done.MaxIterationsReached {
			fmt.Fprintln(os.Stderr, "[done] max iterations reached")
		}
	}
}
