// Package stats provides inference statistics tracking for Scout.
package stats

import (
	"runtime"
	"sync"
	"time"
)

// Collector collects and tracks inference statistics.
type Collector struct {
	mu sync.Mutex

	startTime       time.Time
	completionCount int64
	tokenCount      int64
	toolCallCount   int64
	errorCount      int64
	totalDuration   int64 // nanoseconds
	totalFirstToken int64 // nanoseconds
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// Stats represents inference statistics at a point in time.
type Stats struct {
	// System resources
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	Goroutines  int     `json:"goroutines"`
	Uptime      string  `json:"uptime"`

	// Inference metrics
	CompletionCount int64   `json:"completion_count"`
	TokenCount      int64   `json:"token_count"`
	ToolCallCount   int64   `json:"tool_call_count"`
	ErrorCount      int64   `json:"error_count"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	AvgFirstTokenMs float64 `json:"avg_first_token_ms"`
	TokensPerSec    float64 `json:"tokens_per_sec"`
}

// Collect returns current statistics.
func (c *Collector) Collect() *Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.mu.Lock()
	defer c.mu.Unlock()

	uptime := time.Since(c.startTime)
	avgLatency := float64(0)
	avgFirstToken := float64(0)
	tokensPerSec := float64(0)
	if c.completionCount > 0 {
		avgLatency = float64(c.totalDuration) / float64(c.completionCount) / 1e6
		avgFirstToken = float64(c.totalFirstToken) / float64(c.completionCount) / 1e6
	}
	if c.totalDuration > 0 {
		tokensPerSec = float64(c.tokenCount) / (float64(c.totalDuration) / 1e9)
	}

	return &Stats{
		HeapAllocMB:     float64(m.HeapAlloc) / 1024 / 1024,
		Goroutines:      runtime.NumGoroutine(),
		Uptime:          uptime.String(),
		CompletionCount: c.completionCount,
		TokenCount:      c.tokenCount,
		ToolCallCount:   c.toolCallCount,
		ErrorCount:      c.errorCount,
		AvgLatencyMs:    avgLatency,
		AvgFirstTokenMs: avgFirstToken,
		TokensPerSec:    tokensPerSec,
	}
}

// RecordCompletion records a finished completion call.
func (c *Collector) RecordCompletion(tokens int, firstToken, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completionCount++
	c.tokenCount += int64(tokens)
	c.totalFirstToken += firstToken.Nanoseconds()
	c.totalDuration += duration.Nanoseconds()
}

// RecordToolCall records one executed tool invocation.
func (c *Collector) RecordToolCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolCallCount++
}

// RecordError records an error.
func (c *Collector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}
