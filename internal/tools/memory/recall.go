// Package memory bridges the loop's external memory recall collaborator
// (spec.md §6.1) into a callable tool, so the model can request recall
// mid-run in addition to the loop's own once-per-run pre-iteration call.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentcore/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Recaller is the external collaborator spec.md §6.1 names.
type Recaller interface {
	Recall(ctx context.Context, query string, limit int) ([]string, error)
}

const schemaJSON = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1},
		"limit": {"type": "integer", "minimum": 1, "maximum": 50}
	},
	"required": ["query"]
}`

// RecallTool exposes Recaller.Recall as a tool. It validates its own
// parameters against its schema before calling through (spec.md §4.L:
// "tools advertise a parameter schema; the registry itself does not
// validate"), grounded on the teacher's pluginsdk.ValidateConfig
// compile-then-validate pattern.
type RecallTool struct {
	recaller Recaller
	defaultN int
	schema   *jsonschema.Schema
}

// New builds a RecallTool backed by recaller, defaulting limit to
// defaultN (spec.md default of 10) when the model omits it.
func New(recaller Recaller, defaultN int) (*RecallTool, error) {
	if defaultN <= 0 {
		defaultN = 10
	}
	schema, err := jsonschema.CompileString("memory_recall.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile memory_recall schema: %w", err)
	}
	return &RecallTool{recaller: recaller, defaultN: defaultN, schema: schema}, nil
}

func (t *RecallTool) Name() string { return "memory_recall" }

func (t *RecallTool) Description() string {
	return "Recalls up to `limit` memory snippets relevant to `query`."
}

func (t *RecallTool) Schema() json.RawMessage {
	return json.RawMessage(schemaJSON)
}

func (t *RecallTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return &models.ToolResult{Error: "invalid parameters: " + err.Error()}, nil
	}
	if err := t.schema.Validate(decoded); err != nil {
		return &models.ToolResult{Error: "parameters failed schema validation: " + err.Error()}, nil
	}

	var input struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &models.ToolResult{Error: "invalid parameters: " + err.Error()}, nil
	}
	if input.Limit <= 0 {
		input.Limit = t.defaultN
	}

	if t.recaller == nil {
		return &models.ToolResult{Error: "memory recall is not configured"}, nil
	}

	snippets, err := t.recaller.Recall(ctx, input.Query, input.Limit)
	if err != nil {
		return &models.ToolResult{Error: "recall failed: " + err.Error()}, nil
	}

	return &models.ToolResult{Result: strings.Join(snippets, "\n---\n")}, nil
}
