// Package clock provides a local-only reference tool: it never leaves
// the process, making it a convenient always-available capability for
// exercising the tool registry end to end.
package clock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Tool reports the current time in a requested format.
type Tool struct {
	now func() time.Time
}

// New returns a clock tool using the real wall clock.
func New() *Tool {
	return &Tool{now: time.Now}
}

func (t *Tool) Name() string { return "clock" }

func (t *Tool) Description() string {
	return "Returns the current UTC time, optionally formatted per a Go time layout."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"layout": {
				"type": "string",
				"description": "A Go time layout string; defaults to RFC3339 if omitted."
			}
		}
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Layout string `json:"layout"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return &models.ToolResult{Error: "invalid parameters: " + err.Error()}, nil
		}
	}

	layout := input.Layout
	if layout == "" {
		layout = time.RFC3339
	}

	clock := t.now
	if clock == nil {
		clock = time.Now
	}
	return &models.ToolResult{Result: clock().UTC().Format(layout)}, nil
}
