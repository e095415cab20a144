// Package config loads and validates agentcore's YAML/JSON5 configuration:
// $include-directive merging, env-var and $vault: placeholder expansion,
// version gating, and a JSON-schema export for editor tooling. The loaded
// Config is plain data; it is the host's job (cmd/agentcore) to turn it
// into the collaborators internal/agent.Loop expects.
package config

import "time"

// Config is the root of agentcore's configuration file.
type Config struct {
	Version int `yaml:"version"`

	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Agent         AgentConfig         `yaml:"agent"`
	Privacy       PrivacyConfig       `yaml:"privacy"`
	Session       SessionConfig       `yaml:"session"`
	Multiagent    MultiagentConfig    `yaml:"multiagent"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AgentConfig maps to internal/agent.LoopConfig: the bounded iterative
// loop's budgets and the system prompt it runs with.
type AgentConfig struct {
	MaxIterations        int           `yaml:"max_iterations"`
	Budget               int           `yaml:"budget"`
	MaxResponseTokens    int           `yaml:"max_response_tokens"`
	Temperature          float64       `yaml:"temperature"`
	MemoryRecallLimit    int           `yaml:"memory_recall_limit"`
	ToolResultCharCap    int           `yaml:"tool_result_char_cap"`
	OverflowReserveRatio float64       `yaml:"overflow_reserve_ratio"`
	ProviderTimeout      time.Duration `yaml:"provider_timeout"`
	SystemPrompt         string        `yaml:"system_prompt"`
}

// PrivacyConfig maps to internal/privacy.GateConfig plus the audit log's
// filesystem path (the gate itself takes an already-opened *AuditLog).
type PrivacyConfig struct {
	Enabled         bool    `yaml:"enabled"`
	RedactionMode   string  `yaml:"redaction_mode"`
	MinConfidence   float64 `yaml:"min_confidence"`
	RedactThreshold float64 `yaml:"redact_threshold"`
	HashSalt        string  `yaml:"hash_salt"`
	AuditLogPath    string  `yaml:"audit_log_path"`
}

// MultiagentConfig maps to internal/multiagent.ManagerConfig.
type MultiagentConfig struct {
	MaxConcurrent   int           `yaml:"max_concurrent"`
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
	ArchiveAfter    time.Duration `yaml:"archive_after"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}
