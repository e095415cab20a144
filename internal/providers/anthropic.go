package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/nexuscore/agentcore/internal/stream"
	"github.com/nexuscore/agentcore/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// AnthropicProvider adapts Anthropic's Messages streaming API to the
// Provider interface.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicProvider builds an AnthropicProvider, applying defaults for
// unset optional fields.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.defaultModel }
func (p *AnthropicProvider) IsLocal() bool { return false }

func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err == nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error) {
	out := make(chan models.StreamChunk)

	go func() {
		defer close(out)

		var s *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			s, err = p.createStream(ctx, req)
			if err == nil {
				break
			}
			wrapped := p.wrapError(err, p.model(req.Model))
			if wrapped.Eligibility() == HardStop || attempt == p.maxRetries {
				out <- errorChunk(wrapped)
				return
			}
			backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				out <- errorChunk(ctx.Err())
				return
			case <-time.After(backoff):
			}
		}

		p.processStream(s, out, p.model(req.Model))
	}()

	return out, nil
}

func (p *AnthropicProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *AnthropicProvider) createStream(ctx context.Context, req CompletionRequest) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

func (p *AnthropicProvider) convertMessages(messages []CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResult {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
		}
		for _, tu := range msg.ToolUse {
			content = append(content, anthropic.NewToolUseBlock(tu.ID, map[string]any(tu.Arguments), tu.Name))
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(defs []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(d.Schema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", d.Name, err)
		}
		tp := anthropic.ToolUnionParamOfTool(schema, d.Name)
		tp.OfTool.Description = anthropic.String(d.Description)
		result = append(result, tp)
	}
	return result, nil
}

func (p *AnthropicProvider) processStream(s *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- models.StreamChunk, model string) {
	acc := stream.NewAccumulator()
	// Anthropic keys content blocks by index; this core only executes one
	// tool call's argument accumulation at a time per open block, so a
	// single index->id slot (not a full map) is enough to bridge the
	// index-keyed delta/stop events back to the ID-keyed accumulator.
	blockIDs := map[int64]string{}

	for s.Next() {
		event := s.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				tu := start.ContentBlock.AsToolUse()
				blockIDs[start.Index] = tu.ID
				out <- acc.ToolUseStart(tu.ID, tu.Name)
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					out <- acc.TextDelta(delta.Delta.Text)
				}
			case "input_json_delta":
				if delta.Delta.PartialJSON != "" {
					if id, ok := blockIDs[delta.Index]; ok {
						acc.ToolUseDelta(id, delta.Delta.PartialJSON)
					}
				}
			}
		case "content_block_stop":
			stop := event.AsContentBlockStop()
			if id, ok := blockIDs[stop.Index]; ok {
				out <- acc.ToolUseEnd(id)
				delete(blockIDs, stop.Index)
			}
		case "message_stop":
			out <- acc.MessageStop()
			return
		case "error":
			out <- errorChunk(p.wrapError(errors.New("anthropic stream error"), model))
			return
		}
	}

	if err := s.Err(); err != nil {
		out <- errorChunk(p.wrapError(err, model))
		return
	}
	if err := acc.Err(); err != nil {
		out <- errorChunk(err)
	}
}

func errorChunk(err error) models.StreamChunk {
	return models.StreamChunk{Type: models.ChunkMessageStop, StopReason: "error", Err: err}
}

func (p *AnthropicProvider) wrapError(err error, model string) *ProviderError {
	if err == nil {
		return nil
	}
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return NewProviderError("anthropic", model, err).WithStatus(apiErr.StatusCode).WithRequestID(apiErr.RequestID)
	}
	return NewProviderError("anthropic", model, err)
}
