// Package model provides types for on-device model operations.
package model

import "time"

// State represents the model lifecycle state.
// Transitions: Idle -> Downloading -> Downloaded -> Initializing -> Ready,
// with Error reachable from any state. Owned exclusively by the Session.
type State int

const (
	StateIdle State = iota
	StateDownloading
	StateDownloaded
	StateInitializing
	StateReady
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateDownloaded:
		return "downloaded"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. The conversation is owned by
// the caller of a completion; the session does not persist it.
type Message struct {
	Role   Role     `json:"role"`
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"` // Optional image references
}

// Options control a single completion call.
type Options struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	JSON        bool     `json:"json,omitempty"` // Request JSON output
}

// ToolDef describes a tool the model may invoke, in JSON-schema form.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall represents a structured tool invocation returned by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CompletionStats carries timing and throughput for one completion.
type CompletionStats struct {
	TimeToFirstToken time.Duration `json:"time_to_first_token"`
	TotalTime        time.Duration `json:"total_time"`
	Tokens           int           `json:"tokens"`
	TokensPerSec     float64       `json:"tokens_per_sec"`
}

// CompletionResult is the final aggregated result of a completion.
// Cancelled marks a partial, non-authoritative result.
type CompletionResult struct {
	Text      string          `json:"text"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Cancelled bool            `json:"cancelled,omitempty"`
	Stats     CompletionStats `json:"stats"`
}

// TokenFunc receives tokens as the engine produces them. The caller may
// buffer, render incrementally, or discard; nil disables streaming.
type TokenFunc func(token string)

// Status summarizes the session for observers.
type Status struct {
	Artifact  string `json:"artifact"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}
