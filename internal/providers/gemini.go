package providers

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/agentcore/internal/stream"
	"github.com/nexuscore/agentcore/pkg/models"
	"google.golang.org/genai"
)

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// GeminiProvider adapts Google's genai streaming API to Provider. Gemini
// delivers each function call whole in one response part rather than as
// argument fragments, so no cross-chunk accumulation is needed for tool
// calls here; the shared accumulator is still used to keep emission shape
// identical across providers.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewGeminiProvider builds a GeminiProvider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.defaultModel }
func (p *GeminiProvider) IsLocal() bool { return false }

func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Models.Get(ctx, p.defaultModel, nil)
	return err == nil
}

func (p *GeminiProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *GeminiProvider) Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error) {
	out := make(chan models.StreamChunk)

	go func() {
		defer close(out)

		model := p.model(req.Model)
		contents := p.convertMessages(req.Messages)
		cfg := p.buildConfig(req)

		var lastErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			lastErr = p.stream(ctx, model, contents, cfg, out)
			if lastErr == nil {
				return
			}
			wrapped := p.wrapError(lastErr, model)
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
	}()

	return out, nil
}

func (p *GeminiProvider) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, out chan<- models.StreamChunk) error {
	acc := stream.NewAccumulator()

	for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					out <- acc.TextDelta(part.Text)
				}
				if part.FunctionCall != nil {
					id := uuid.NewString()
					out <- acc.ToolUseStart(id, part.FunctionCall.Name)
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					acc.ToolUseDelta(id, string(argsJSON))
					out <- acc.ToolUseEnd(id)
				}
			}
		}
	}

	out <- acc.MessageStop()
	return acc.Err()
}

func (p *GeminiProvider) convertMessages(messages []CompletionMessage) []*genai.Content {
	var result []*genai.Content
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}

		var parts []*genai.Part
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, tu := range m.ToolUse {
			parts = append(parts, genai.NewPartFromFunctionCall(tu.Name, tu.Arguments))
		}
		for _, tr := range m.ToolResult {
			parts = append(parts, genai.NewPartFromFunctionResponse(tr.ToolUseID, map[string]any{"content": tr.Content, "isError": tr.IsError}))
		}

		role := genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		result = append(result, &genai.Content{Role: role, Parts: parts})
	}
	return result
}

func (p *GeminiProvider) buildConfig(req CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = p.convertTools(req.Tools)
	}
	return cfg
}

func (p *GeminiProvider) convertTools(defs []models.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		var schema genai.Schema
		_ = json.Unmarshal(d.Schema, &schema)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  &schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *GeminiProvider) wrapError(err error, model string) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	var apiErr genai.APIError
	status := 0
	if asAPIError(err, &apiErr) {
		status = apiErr.Code
	}
	return NewProviderError("gemini", model, err).WithStatus(status)
}

func asAPIError(err error, target *genai.APIError) bool {
	ae, ok := err.(genai.APIError)
	if !ok {
		return false
	}
	*target = ae
	return true
}
