// Package observability provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for agentcore's runtime.
//
// # Overview
//
// The package covers three concerns:
//
//  1. Logging - structured logs via slog, with sensitive-field redaction
//  2. Metrics - Prometheus counters/histograms for the LLM failover chain,
//     tool execution, agent errors, and run attempts
//  3. Tracing - OpenTelemetry spans across message processing, LLM
//     requests, and tool execution
//
// # Metrics
//
// Metrics are constructed once via NewMetrics and registered against
// Prometheus's default registry.
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... call a provider through the failover chain ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-5", "success", time.Since(start).Seconds())
//
//	metrics.RecordToolExecution("recall_memory", "success", 0.03)
//	metrics.RecordError("agent", "provider_error")
//	metrics.RecordRunAttempt("success")
//
// # Logging
//
// Logging wraps slog with automatic redaction of sensitive fields (API
// keys, passwords, tokens) and request/session ID correlation via context.
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	logger.Info(ctx, "processing message", "session_id", sessionID)
//	logger.Error(ctx, "llm request failed", "error", err, "api_key", apiKey) // redacted
//
// # Tracing
//
// Tracing uses OpenTelemetry to follow a request across the agent loop,
// the provider chain, and tool execution.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:  "agentcore",
//	    Endpoint:     "localhost:4317",
//	    SamplingRate: 0.1,
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceLLMRequest(ctx, "anthropic", "claude-sonnet-4-5")
//	defer span.End()
//	if err != nil {
//	    tracer.RecordError(span, err)
//	}
//
// # Security Considerations
//
// The logging component automatically redacts API keys, passwords,
// secrets, and bearer/JWT tokens found in log arguments, by key name
// (password, api_key, token, authorization, ...) or value pattern.
//
// # Testing
//
//   - Metrics are verified against isolated prometheus.Registry instances,
//     not the package-level default registry, so tests don't collide with
//     NewMetrics's promauto registration.
//   - Logging writes to a bytes.Buffer for assertions on redaction and format.
//   - Tracing uses a no-op exporter in tests.
package observability
