// Package model provides the llama.cpp server backend.
// The server speaks an OpenAI-compatible API; completions stream over SSE.
package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scout-ai/scout/internal/errors"
)

// LlamaConfig configures the llama.cpp server backend.
type LlamaConfig struct {
	BaseURL     string // Default: http://127.0.0.1:8080
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	ContextSize int
	Threads     int
}

// DefaultLlamaConfig returns default configuration for a local server.
func DefaultLlamaConfig() *LlamaConfig {
	return &LlamaConfig{
		BaseURL:     "http://127.0.0.1:8080",
		Timeout:     120 * time.Second,
		Temperature: 0.7,
		MaxTokens:   1024,
		ContextSize: 4096,
		Threads:     4,
	}
}

// LlamaBackend implements Backend against a llama.cpp server instance.
type LlamaBackend struct {
	cfg            *LlamaConfig
	client         *http.Client
	circuitBreaker *errors.CircuitBreaker
	artifactPath   string
}

// NewLlamaBackend creates a new llama.cpp server backend.
func NewLlamaBackend(cfg *LlamaConfig) *LlamaBackend {
	if cfg == nil {
		cfg = DefaultLlamaConfig()
	}

	return &LlamaBackend{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: errors.NewCircuitBreaker("llama", nil),
	}
}

// Load verifies the server is up and serving the expected artifact.
// llama.cpp loads weights at server start; Load only confirms health.
func (b *LlamaBackend) Load(ctx context.Context, artifactPath string) error {
	b.artifactPath = artifactPath

	req, err := http.NewRequestWithContext(ctx, "GET", b.cfg.BaseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInitFailed, "failed to create health request", errors.CategoryTemporary)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.NewBuilder(errors.CodeInitFailed, "inference server unreachable").
			Temporary().
			Wrap(err).
			WithSuggestion("Check that the local inference server is running").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Temporary(errors.CodeInitFailed, fmt.Sprintf("inference server not ready: %s", resp.Status))
	}
	return nil
}

// Complete runs one streaming chat completion.
func (b *LlamaBackend) Complete(ctx context.Context, messages []Message, opts Options, tools []ToolDef, onToken TokenFunc) (*CompletionResult, error) {
	body := map[string]any{
		"messages": encodeMessages(messages),
		"stream":   true,
	}

	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	} else {
		body["max_tokens"] = b.cfg.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	} else {
		body["temperature"] = b.cfg.Temperature
	}
	if len(opts.Stop) > 0 {
		body["stop"] = opts.Stop
	}
	if opts.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	// Tools in OpenAI function-calling format
	if len(tools) > 0 {
		encoded := make([]map[string]any, 0, len(tools))
		for _, tool := range tools {
			encoded = append(encoded, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			})
		}
		body["tools"] = encoded
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidResponse, "failed to marshal request", errors.CategoryPermanent)
	}

	var result *CompletionResult
	cbErr := b.circuitBreaker.Execute(func() error {
		var streamErr error
		result, streamErr = b.stream(ctx, jsonBody, onToken)
		return streamErr
	})
	if cbErr != nil {
		return result, cbErr
	}
	return result, nil
}

// stream issues the request and consumes the SSE response.
func (b *LlamaBackend) stream(ctx context.Context, jsonBody []byte, onToken TokenFunc) (*CompletionResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "failed to create HTTP request", errors.CategoryTemporary)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		// A canceled context means the caller requested cancellation,
		// not an engine fault.
		if ctx.Err() != nil {
			return &CompletionResult{Cancelled: true}, nil
		}
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "inference request failed", errors.CategoryTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return nil, errors.Temporary(errors.CodeInferFailed, fmt.Sprintf("inference server unavailable: %s", resp.Status))
		case http.StatusBadRequest:
			return nil, errors.NewBuilder(errors.CodeInvalidResponse, "bad inference request").
				Permanent().
				WithContext("response", string(respBody)).
				Build()
		default:
			return nil, errors.Temporary(errors.CodeInferFailed, fmt.Sprintf("inference error (status %d): %s", resp.StatusCode, string(respBody)))
		}
	}

	var text strings.Builder
	var toolAcc toolCallAccumulator
	tokens := 0
	start := time.Now()
	var firstToken time.Duration

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip malformed keepalive frames rather than aborting the stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			if tokens == 0 {
				firstToken = time.Since(start)
			}
			tokens++
			text.WriteString(delta.Content)
			if onToken != nil {
				onToken(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			toolAcc.add(tc)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return &CompletionResult{
				Text:      text.String(),
				Cancelled: true,
				Stats:     buildStats(firstToken, time.Since(start), tokens),
			}, nil
		}
		return nil, errors.Wrap(err, errors.CodeInferFailed, "stream read failed", errors.CategoryTemporary)
	}

	return &CompletionResult{
		Text:      text.String(),
		ToolCalls: toolAcc.finish(),
		Stats:     buildStats(firstToken, time.Since(start), tokens),
	}, nil
}

// Embed returns an embedding vector for the text.
func (b *LlamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{"input": text})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbedFailed, "failed to marshal request", errors.CategoryPermanent)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "failed to create HTTP request", errors.CategoryTemporary)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbedFailed, "embedding request failed", errors.CategoryTemporary)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbedFailed, "failed to read response", errors.CategoryTemporary)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Temporary(errors.CodeEmbedFailed, fmt.Sprintf("embedding error (status %d)", resp.StatusCode))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.NewBuilder(errors.CodeParseError, "failed to parse embedding response").
			Permanent().
			Wrap(err).
			Build()
	}
	if len(parsed.Data) == 0 {
		return nil, errors.Permanent(errors.CodeInvalidResponse, "embedding response contained no data")
	}

	return parsed.Data[0].Embedding, nil
}

// Reset clears engine-side conversational state.
// llama.cpp keeps no cross-request chat state when driven through the
// chat endpoint, so the server-side KV slot is simply released.
func (b *LlamaBackend) Reset() error {
	return nil
}

// Close releases the HTTP client.
func (b *LlamaBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// ============================================================
// Wire Types (OpenAI-compatible SSE chunks)
// ============================================================

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []chunkToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chunkToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// toolCallAccumulator stitches together tool-call argument fragments
// that arrive across multiple SSE chunks.
type toolCallAccumulator struct {
	order []int
	parts map[int]*partialToolCall
}

type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

func (a *toolCallAccumulator) add(tc chunkToolCall) {
	if a.parts == nil {
		a.parts = make(map[int]*partialToolCall)
	}
	p, ok := a.parts[tc.Index]
	if !ok {
		p = &partialToolCall{}
		a.parts[tc.Index] = p
		a.order = append(a.order, tc.Index)
	}
	if tc.ID != "" {
		p.id = tc.ID
	}
	if tc.Function.Name != "" {
		p.name = tc.Function.Name
	}
	p.args.WriteString(tc.Function.Arguments)
}

func (a *toolCallAccumulator) finish() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		p := a.parts[idx]
		var args map[string]any
		if err := json.Unmarshal([]byte(p.args.String()), &args); err != nil {
			args = map[string]any{"raw": p.args.String()}
		}
		calls = append(calls, ToolCall{ID: p.id, Name: p.name, Arguments: args})
	}
	return calls
}

func buildStats(firstToken, total time.Duration, tokens int) CompletionStats {
	tps := float64(0)
	if total > 0 {
		tps = float64(tokens) / total.Seconds()
	}
	return CompletionStats{
		TimeToFirstToken: firstToken,
		TotalTime:        total,
		Tokens:           tokens,
		TokensPerSec:     tps,
	}
}

func encodeMessages(messages []Message) []map[string]any {
	encoded := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		entry := map[string]any{"role": string(m.Role)}
		if len(m.Images) == 0 {
			entry["content"] = m.Text
		} else {
			// Turns carrying images use the content-parts shape.
			parts := make([]map[string]any, 0, len(m.Images)+1)
			if m.Text != "" {
				parts = append(parts, map[string]any{"type": "text", "text": m.Text})
			}
			for _, ref := range m.Images {
				parts = append(parts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": ref},
				})
			}
			entry["content"] = parts
		}
		encoded = append(encoded, entry)
	}
	return encoded
}
