package models

import "encoding/json"

// ToolDefinition is what the tool registry advertises to a provider: a
// name, description, and parameter schema. The registry does not validate
// against the schema itself — per spec.md §4.L, tools validate their own
// arguments.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}
