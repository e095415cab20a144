package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/nexuscore/agentcore/internal/stream"
	"github.com/nexuscore/agentcore/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// OpenAIProvider adapts the Chat Completions streaming API to Provider.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAIProvider builds an OpenAIProvider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.defaultModel }
func (p *OpenAIProvider) IsLocal() bool { return false }

func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

func (p *OpenAIProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *OpenAIProvider) Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error) {
	out := make(chan models.StreamChunk)

	go func() {
		defer close(out)

		chatReq, err := p.buildRequest(req)
		if err != nil {
			out <- errorChunk(NewProviderError("openai", p.model(req.Model), err))
			return
		}

		var s *openai.ChatCompletionStream
		var lastErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			s, lastErr = p.client.CreateChatCompletionStream(ctx, chatReq)
			if lastErr == nil {
				break
			}
			wrapped := p.wrapError(lastErr, p.model(req.Model))
			if wrapped.Eligibility() == HardStop || attempt == p.maxRetries {
				out <- errorChunk(wrapped)
				return
			}
			select {
			case <-ctx.Done():
				out <- errorChunk(ctx.Err())
				return
			case <-time.After(p.retryDelay * time.Duration(attempt+1)):
			}
		}
		defer s.Close()

		p.processStream(s, out, p.model(req.Model))
	}()

	return out, nil
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest) (openai.ChatCompletionRequest, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tu := range m.ToolUse {
				args, err := json.Marshal(tu.Arguments)
				if err != nil {
					return openai.ChatCompletionRequest{}, err
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tu.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tu.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)
		case models.RoleTool:
			for _, tr := range m.ToolResult {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolUseID,
				})
			}
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    p.model(req.Model),
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}
	return chatReq, nil
}

func (p *OpenAIProvider) convertTools(defs []models.ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  json.RawMessage(d.Schema),
			},
		})
	}
	return tools
}

func (p *OpenAIProvider) processStream(s *openai.ChatCompletionStream, out chan<- models.StreamChunk, model string) {
	acc := stream.NewAccumulator()
	// OpenAI streams tool-call argument deltas keyed by array index, with
	// the call ID and name present only on the first delta for that index.
	indexIDs := map[int]string{}

	for {
		resp, err := s.Recv()
		if errors.Is(err, io.EOF) {
			out <- acc.MessageStop()
			return
		}
		if err != nil {
			out <- errorChunk(p.wrapError(err, model))
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			out <- acc.TextDelta(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if tc.ID != "" {
				indexIDs[idx] = tc.ID
				out <- acc.ToolUseStart(tc.ID, tc.Function.Name)
			}
			if tc.Function.Arguments != "" {
				if id, ok := indexIDs[idx]; ok {
					acc.ToolUseDelta(id, tc.Function.Arguments)
				}
			}
		}
		if choice.FinishReason == openai.FinishReasonToolCalls || choice.FinishReason == openai.FinishReasonStop {
			for _, id := range indexIDs {
				out <- acc.ToolUseEnd(id)
			}
			indexIDs = map[int]string{}
		}
	}
}

func (p *OpenAIProvider) wrapError(err error, model string) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := NewProviderError("openai", model, err).WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok {
			pe = pe.WithCode(code)
		}
		return pe
	}
	return NewProviderError("openai", model, err)
}
