// Package model provides a scripted backend for tests and simulator builds.
package model

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/scout-ai/scout/internal/errors"
)

// StubResponse is one scripted completion the stub will play back.
type StubResponse struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
	// Delay is applied per token, letting tests exercise cancellation
	// and in-flight conflicts.
	Delay time.Duration
}

// StubBackend is a Backend that replays scripted responses in order.
// When the script is exhausted it repeats the last entry.
type StubBackend struct {
	mu       sync.Mutex
	script   []StubResponse
	calls    int
	embedDim int
	loaded   bool
	loadErr  error
	resets   int
}

// NewStubBackend creates a stub with the given script.
func NewStubBackend(script ...StubResponse) *StubBackend {
	return &StubBackend{script: script, embedDim: 8}
}

// SetLoadError makes the next Load fail, for init-failure tests.
func (b *StubBackend) SetLoadError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadErr = err
}

// Enqueue appends responses to the script.
func (b *StubBackend) Enqueue(resp ...StubResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, resp...)
}

// Calls returns how many completions have been requested.
func (b *StubBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Resets returns how many times Reset was called.
func (b *StubBackend) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}

// Load marks the stub as initialized.
func (b *StubBackend) Load(ctx context.Context, artifactPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		err := b.loadErr
		b.loadErr = nil
		return err
	}
	b.loaded = true
	return nil
}

// Complete replays the next scripted response, streaming it word by word.
func (b *StubBackend) Complete(ctx context.Context, messages []Message, opts Options, tools []ToolDef, onToken TokenFunc) (*CompletionResult, error) {
	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return nil, errors.System(errors.CodeInferFailed, "stub backend not loaded")
	}
	idx := b.calls
	b.calls++
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	if idx < 0 {
		b.mu.Unlock()
		return &CompletionResult{Text: "ok"}, nil
	}
	resp := b.script[idx]
	b.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}

	start := time.Now()
	var out strings.Builder
	var firstToken time.Duration
	tokens := 0

	for _, word := range strings.SplitAfter(resp.Text, " ") {
		if word == "" {
			continue
		}
		if resp.Delay > 0 {
			select {
			case <-ctx.Done():
				return &CompletionResult{
					Text:      out.String(),
					Cancelled: true,
					Stats:     buildStats(firstToken, time.Since(start), tokens),
				}, nil
			case <-time.After(resp.Delay):
			}
		} else if ctx.Err() != nil {
			return &CompletionResult{
				Text:      out.String(),
				Cancelled: true,
				Stats:     buildStats(firstToken, time.Since(start), tokens),
			}, nil
		}
		if tokens == 0 {
			firstToken = time.Since(start)
		}
		tokens++
		out.WriteString(word)
		if onToken != nil {
			onToken(word)
		}
	}

	return &CompletionResult{
		Text:      out.String(),
		ToolCalls: resp.ToolCalls,
		Stats:     buildStats(firstToken, time.Since(start), tokens),
	}, nil
}

// Embed returns a deterministic pseudo-embedding of the text.
func (b *StubBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	b.mu.Lock()
	loaded := b.loaded
	dim := b.embedDim
	b.mu.Unlock()
	if !loaded {
		return nil, errors.System(errors.CodeEmbedFailed, "stub backend not loaded")
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec, nil
}

// Reset counts resets; the stub holds no conversational state.
func (b *StubBackend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	return nil
}

// Close marks the stub unloaded.
func (b *StubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = false
	return nil
}
