package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/failover"
	"github.com/nexuscore/agentcore/internal/multiagent"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/privacy"
	"github.com/nexuscore/agentcore/internal/providers"
	"github.com/nexuscore/agentcore/internal/sessions"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/tools/clock"
	recalltool "github.com/nexuscore/agentcore/internal/tools/memory"
)

// runtime is every collaborator internal/agent.Loop needs, wired from a
// loaded Config. It exists so the CLI commands below share one
// construction path instead of each reinventing the wiring.
type runtime struct {
	cfg      *config.Config
	chain    *failover.Chain
	monitor  *failover.Monitor
	registry *tools.Registry
	gate     *privacy.Gate
	recall   recalltool.Recaller
	store    *sessions.MemoryStore
	tracer   *observability.Tracer
	audit    *privacy.AuditLog
	manager  *multiagent.Manager
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// noopRecaller satisfies recalltool.Recaller when no long-term memory
// store is configured; memory recall is an external collaborator
// (spec.md §6.1), not something the core provides on its own.
type noopRecaller struct{}

func (noopRecaller) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	return nil, nil
}

// buildProviderChain turns cfg.LLM into a priority-ordered failover.Chain.
// Providers absent from cfg.LLM.Providers are skipped rather than failed
// on, so a partial credential set still produces a usable (if shorter)
// chain.
func buildProviderChain(ctx context.Context, cfg config.LLMConfig, metrics *observability.Metrics) (*failover.Chain, error) {
	var entries []failover.Entry
	priority := 0

	order := cfg.FallbackChain
	if len(order) == 0 {
		for name := range cfg.Providers {
			order = append(order, name)
		}
	}
	if cfg.DefaultProvider != "" {
		order = append([]string{cfg.DefaultProvider}, order...)
	}

	seen := map[string]bool{}
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		pcfg, ok := cfg.Providers[name]
		if !ok {
			continue
		}

		var p providers.Provider
		var err error
		switch name {
		case "anthropic":
			p, err = providers.NewAnthropicProvider(providers.AnthropicConfig{
				APIKey: pcfg.APIKey, BaseURL: pcfg.BaseURL, DefaultModel: pcfg.DefaultModel,
			})
		case "openai":
			p, err = providers.NewOpenAIProvider(providers.OpenAIConfig{
				APIKey: pcfg.APIKey, BaseURL: pcfg.BaseURL, DefaultModel: pcfg.DefaultModel,
			})
		case "google", "gemini":
			p, err = providers.NewGeminiProvider(ctx, providers.GeminiConfig{
				APIKey: pcfg.APIKey, DefaultModel: pcfg.DefaultModel,
			})
		case "local", "ollama":
			p = providers.NewLocalProvider(providers.LocalConfig{
				BaseURL: pcfg.BaseURL, DefaultModel: pcfg.DefaultModel,
			})
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		entries = append(entries, failover.Entry{Provider: p, Priority: priority})
		priority++
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	return failover.NewChain(failover.ChainConfig{
		Providers:           entries,
		SameProviderRetries: cfg.SameProviderRetries,
		OnAttempt: func(provider, model, status string, duration time.Duration) {
			metrics.RecordLLMRequest(provider, model, status, duration.Seconds())
		},
	}), nil
}

// newRuntime wires every collaborator the agent loop and subagent manager
// need from cfg. The caller owns shutdown via runtime.Close.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	metrics := observability.NewMetrics()

	chain, err := buildProviderChain(ctx, cfg.LLM, metrics)
	if err != nil {
		return nil, err
	}

	monitor := failover.NewMonitor(failover.MonitorConfig{Chain: chain})
	monitor.Start(ctx)

	tracer, _ := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
		Environment:    cfg.Observability.Tracing.Environment,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		Insecure:       cfg.Observability.Tracing.Insecure,
	})

	var auditLog *privacy.AuditLog
	if cfg.Privacy.AuditLogPath != "" {
		auditLog, err = privacy.OpenAuditLog(cfg.Privacy.AuditLogPath, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	gate := privacy.NewGate(privacy.GateConfig{
		Enabled:         cfg.Privacy.Enabled,
		RedactionMode:   privacy.Mode(cfg.Privacy.RedactionMode),
		MinConfidence:   cfg.Privacy.MinConfidence,
		RedactThreshold: cfg.Privacy.RedactThreshold,
		HashSalt:        cfg.Privacy.HashSalt,
	}, auditLog, slog.Default())

	registry := tools.NewRegistry()
	registry.Register(clock.New())
	recaller := recalltool.Recaller(noopRecaller{})
	if rt, err := recalltool.New(recaller, cfg.Agent.MemoryRecallLimit); err == nil {
		registry.Register(rt)
	}
	go recordToolEvents(registry.Events(), metrics)

	store := sessions.NewMemoryStore()

	rt := &runtime{
		cfg:      cfg,
		chain:    chain,
		monitor:  monitor,
		registry: registry,
		gate:     gate,
		recall:   recaller,
		store:    store,
		tracer:   tracer,
		audit:    auditLog,
		logger:   logger,
		metrics:  metrics,
	}

	rt.manager = multiagent.NewManager(chain, registry, gate, recaller, store, tracer, monitor, multiagent.ManagerConfig{
		MaxConcurrent:   rt.cfg.Multiagent.MaxConcurrent,
		WatchdogTimeout: rt.cfg.Multiagent.WatchdogTimeout,
		ArchiveAfter:    rt.cfg.Multiagent.ArchiveAfter,
		SweepInterval:   rt.cfg.Multiagent.SweepInterval,
		LoopConfig:      rt.loopConfig(),
	})

	return rt, nil
}

// loopConfig converts cfg.Agent into agent.LoopConfig.
func (rt *runtime) loopConfig() agent.LoopConfig {
	a := rt.cfg.Agent
	return agent.LoopConfig{
		MaxIterations:        a.MaxIterations,
		Budget:               a.Budget,
		MaxResponseTokens:    a.MaxResponseTokens,
		Temperature:          a.Temperature,
		MemoryRecallLimit:    a.MemoryRecallLimit,
		ToolResultCharCap:    a.ToolResultCharCap,
		OverflowReserveRatio: a.OverflowReserveRatio,
		ProviderTimeout:      a.ProviderTimeout,
		SystemPrompt:         a.SystemPrompt,
	}
}

func (rt *runtime) newLoop() *agent.Loop {
	return agent.New(rt.chain, rt.registry, rt.gate, rt.recall, rt.store, rt.tracer, rt.loopConfig())
}

// Close shuts down the runtime's background goroutines in reverse
// dependency order: the subagent manager first (it depends on the chain
// and monitor), then the monitor, then the audit log.
func (rt *runtime) Close(ctx context.Context) error {
	if rt.manager != nil {
		if err := rt.manager.Shutdown(ctx); err != nil {
			return err
		}
	}
	if rt.monitor != nil {
		rt.monitor.Stop()
	}
	if rt.audit != nil {
		return rt.audit.Close()
	}
	return nil
}

// recordToolEvents drains a tool event bus subscription into metrics for
// the lifetime of the process; the subscription channel is never closed,
// so this runs until the process exits.
func recordToolEvents(events <-chan tools.Event, metrics *observability.Metrics) {
	for e := range events {
		status := string(e.Kind)
		metrics.RecordToolExecution(e.ToolName, status, float64(e.DurationMs)/1000)
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("AGENTCORE_CONFIG"); v != "" {
		return v
	}
	return "agentcore.yaml"
}

func shutdownTimeout() time.Duration { return 30 * time.Second }
