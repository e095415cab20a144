package models

// ToolResult is the uniform envelope the tool registry returns from every
// invocation. Exactly one of Result/Error is populated.
type ToolResult struct {
	Name       string `json:"name"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// IsError reports whether the invocation failed.
func (r *ToolResult) IsError() bool {
	return r != nil && r.Error != ""
}
