package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/nexuscore/agentcore/internal/stream"
	"github.com/nexuscore/agentcore/pkg/models"
)

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// BedrockProvider adapts AWS Bedrock's Converse streaming API to Provider.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewBedrockProvider builds a BedrockProvider using explicit credentials
// when given, otherwise the default AWS credential chain.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (p *BedrockProvider) Name() string  { return "bedrock" }
func (p *BedrockProvider) Model() string { return p.defaultModel }
func (p *BedrockProvider) IsLocal() bool { return false }

func (p *BedrockProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListFoundationModels(ctx, nil)
	return err == nil
}

func (p *BedrockProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *BedrockProvider) Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error) {
	out := make(chan models.StreamChunk)

	go func() {
		defer close(out)

		converseReq := p.buildRequest(req)

		var s *bedrockruntime.ConverseStreamOutput
		var lastErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			s, lastErr = p.client.ConverseStream(ctx, converseReq)
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

		p.processStream(ctx, s, out, p.model(req.Model))
	}()

	return out, nil
}

func (p *BedrockProvider) buildRequest(req CompletionRequest) *bedrockruntime.ConverseStreamInput {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(p.model(req.Model)),
		Messages: p.convertMessages(req.Messages),
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(req.MaxTokens))}
	}
	if len(req.Tools) > 0 {
		in.ToolConfig = p.convertTools(req.Tools)
	}
	return in
}

func (p *BedrockProvider) convertMessages(messages []CompletionMessage) []types.Message {
	var result []types.Message
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		var blocks []types.ContentBlock
		if m.Content != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tu := range m.ToolUse {
			blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String(tu.ID),
				Name:      aws.String(tu.Name),
				Input:     document.NewLazyDocument(map[string]any(tu.Arguments)),
			}})
		}
		for _, tr := range m.ToolResult {
			status := types.ToolResultStatusSuccess
			if tr.IsError {
				status = types.ToolResultStatusError
			}
			blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(tr.ToolUseID),
				Status:    status,
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
			}})
		}

		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: blocks})
	}
	return result
}

func (p *BedrockProvider) convertTools(defs []models.ToolDefinition) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		_ = json.Unmarshal(d.Schema, &schema)
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func (p *BedrockProvider) processStream(ctx context.Context, s *bedrockruntime.ConverseStreamOutput, out chan<- models.StreamChunk, model string) {
	es := s.GetStream()
	defer es.Close()

	acc := stream.NewAccumulator()
	var currentID string

	for {
		select {
		case <-ctx.Done():
			out <- errorChunk(ctx.Err())
			return
		case event, ok := <-es.Events():
			if !ok {
				if err := es.Err(); err != nil {
					out <- errorChunk(p.wrapError(err, model))
				} else {
					out <- acc.MessageStop()
				}
				return
			}
			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if tu, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentID = aws.ToString(tu.Value.ToolUseId)
					out <- acc.ToolUseStart(currentID, aws.ToString(tu.Value.Name))
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						out <- acc.TextDelta(delta.Value)
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil && currentID != "" {
						acc.ToolUseDelta(currentID, *delta.Value.Input)
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentID != "" {
					out <- acc.ToolUseEnd(currentID)
					currentID = ""
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				out <- acc.MessageStop()
				return
			}
		}
	}
}

func (p *BedrockProvider) wrapError(err error, model string) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	var status int
	var apiErr interface{ HTTPStatusCode() int }
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode()
	}
	return NewProviderError("bedrock", model, err).WithStatus(status)
}
