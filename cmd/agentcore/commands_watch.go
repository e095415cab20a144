package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nexuscore/agentcore/internal/config"
	"github.com/spf13/cobra"
)

// buildWatchCmd demonstrates credential-rotation-without-restart: it
// reloads and re-validates the config file on every edit, printing the
// new provider set, without touching any in-flight run.
func buildWatchCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a config file and re-validate it on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w := config.NewWatcher(configPath, nil, func(cfg *config.Config) {
				fmt.Printf("reloaded: version=%d default_provider=%s\n", cfg.Version, cfg.LLM.DefaultProvider)
			}, func(err error) {
				fmt.Printf("reload failed: %v\n", err)
			})
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the config file")
	return cmd
}
