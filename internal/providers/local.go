package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexuscore/agentcore/internal/stream"
	"github.com/nexuscore/agentcore/pkg/models"
)

// LocalConfig configures a LocalProvider.
type LocalConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// LocalProvider adapts an on-device inference server (an Ollama-compatible
// NDJSON chat endpoint) to Provider. It reports IsLocal()=true so the
// privacy gate bypasses detection/redaction/audit for every call routed
// through it (spec.md §4.E/§4.I): data never leaves the device.
type LocalProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

// NewLocalProvider builds a LocalProvider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LocalProvider{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

func (p *LocalProvider) Name() string  { return "local" }
func (p *LocalProvider) Model() string { return p.defaultModel }
func (p *LocalProvider) IsLocal() bool { return true }

func (p *LocalProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

type localChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Model    string             `json:"model"`
	Stream   bool               `json:"stream"`
	Messages []localChatMessage `json:"messages"`
	Options  map[string]any     `json:"options,omitempty"`
}

type localChatResponse struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (p *LocalProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *LocalProvider) Chat(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error) {
	model := p.model(req.Model)
	if model == "" {
		return nil, NewProviderError("local", req.Model, errors.New("model is required"))
	}

	payload := localChatRequest{Model: model, Stream: true, Messages: p.convertMessages(req)}
	if req.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("local", model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("local", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("local", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("local", model, fmt.Errorf("local status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	out := make(chan models.StreamChunk)
	go p.streamResponse(ctx, resp.Body, out, model)
	return out, nil
}

func (p *LocalProvider) convertMessages(req CompletionRequest) []localChatMessage {
	var out []localChatMessage
	if req.System != "" {
		out = append(out, localChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out = append(out, localChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (p *LocalProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan<- models.StreamChunk, model string) {
	defer close(out)
	defer body.Close()

	acc := stream.NewAccumulator()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- errorChunk(ctx.Err())
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp localChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- errorChunk(NewProviderError("local", model, fmt.Errorf("decode response: %w", err)))
			return
		}
		if resp.Error != "" {
			out <- errorChunk(NewProviderError("local", model, errors.New(resp.Error)))
			return
		}
		if resp.Message != nil && resp.Message.Content != "" {
			out <- acc.TextDelta(resp.Message.Content)
		}
		if resp.Done {
			out <- acc.MessageStop()
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- errorChunk(NewProviderError("local", model, err))
		return
	}
	out <- acc.MessageStop()
}
