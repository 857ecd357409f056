// Package protocol provides shared data structures used across Scout components.
// These types are the contract between the core and the host application's
// tool executor, which performs all actual data access.
package protocol

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ToolDefinition describes a tool's contract.
type ToolDefinition struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]Parameter `json:"parameters"`
}

// Parameter describes a tool parameter.
type Parameter struct {
	Type        string   `json:"type"` // string, number, boolean, array, object
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"` // For string enums
}

// SuccessResult creates a successful result for a tool.
func SuccessResult(tool string, data any) ToolResult {
	return ToolResult{Tool: tool, Success: true, Data: data}
}

// ErrorResult creates a failed result for a tool.
func ErrorResult(tool string, err error) ToolResult {
	return ToolResult{Tool: tool, Success: false, Error: err.Error()}
}
