// Package agent drives the bounded tool-calling conversation loop.
//
// The orchestrator sends messages plus the tool catalog to the
// inference session, normalizes whatever invocation shape comes back
// (native or text-embedded), delegates execution to the injected
// executor, folds results back into the conversation, and repeats
// until the model produces a final answer or the step budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/scout-ai/scout/internal/errors"
	"github.com/scout-ai/scout/internal/memory"
	"github.com/scout-ai/scout/internal/model"
	"github.com/scout-ai/scout/internal/persona"
	"github.com/scout-ai/scout/internal/prompt"
	"github.com/scout-ai/scout/internal/tools"
	"github.com/scout-ai/scout/pkg/protocol"
)

// DefaultMaxSteps bounds the number of model calls per request.
const DefaultMaxSteps = 3

// Orchestrator is the per-user conversation driver. It owns no tool
// execution logic; everything external goes through the Executor.
type Orchestrator struct {
	session      *model.Session
	tools        *tools.Registry
	executor     tools.Executor
	engine       *persona.Engine
	interactions *memory.Interactions
	conversation *memory.Conversation
	builder      *prompt.Builder
	credential   string
	maxSteps     int
}

// Config configures the orchestrator.
type Config struct {
	Session      *model.Session
	Tools        *tools.Registry
	Executor     tools.Executor // external collaborator; performs all data access
	Engine       *persona.Engine
	Interactions *memory.Interactions
	Conversation *memory.Conversation
	Credential   string // opaque bearer token passed through to the executor
	MaxSteps     int
}

// New creates an orchestrator.
func New(cfg *Config) *Orchestrator {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	builder := prompt.NewBuilder(prompt.ModeFull)
	builder.MaxSteps = maxSteps

	conversation := cfg.Conversation
	if conversation == nil {
		conversation = memory.NewConversation(0)
	}

	return &Orchestrator{
		session:      cfg.Session,
		tools:        cfg.Tools,
		executor:     cfg.Executor,
		engine:       cfg.Engine,
		interactions: cfg.Interactions,
		conversation: conversation,
		builder:      builder,
		credential:   cfg.Credential,
		maxSteps:     maxSteps,
	}
}

// Response is the orchestrator's answer to one question.
type Response struct {
	Text          string         `json:"text"`
	Steps         int            `json:"steps"`
	ToolsExecuted []ToolCallInfo `json:"tools_executed,omitempty"`
	Cancelled     bool           `json:"cancelled,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
}

// ToolCallInfo summarizes one executed tool call.
type ToolCallInfo struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
}

// Ask answers a question about a candidate, pulling in external data
// through tools as the model requests. entityContext is caller-supplied
// text about the entity under discussion (may be empty). Tokens stream
// through onToken as they are produced; pass nil to skip streaming.
func (o *Orchestrator) Ask(ctx context.Context, question, entityContext string, onToken model.TokenFunc) (*Response, error) {
	start := time.Now()

	system := o.buildSystemPrompt(entityContext)
	messages := []model.Message{{Role: model.RoleSystem, Text: system}}
	messages = append(messages, o.conversation.Turns()...)
	messages = append(messages, model.Message{Role: model.RoleUser, Text: question})

	var executed []ToolCallInfo
	opts := model.Options{}

	for step := 1; step <= o.maxSteps; step++ {
		lastStep := step == o.maxSteps

		// The final step forces a text answer: no tools offered.
		var defs []model.ToolDef
		if !lastStep {
			defs = o.tools.Defs()
		}
		if lastStep && len(executed) > 0 {
			messages = append(messages, model.Message{
				Role: model.RoleUser,
				Text: prompt.FinalAnswerPrompt(),
			})
		}

		result, err := o.session.Complete(ctx, messages, opts, defs, onToken)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInferFailed, "completion failed", apperrors.CategoryTemporary)
		}
		if result.Cancelled {
			return &Response{
				Text:          result.Text,
				Steps:         step,
				ToolsExecuted: executed,
				Cancelled:     true,
				DurationMs:    time.Since(start).Milliseconds(),
			}, nil
		}

		calls := result.ToolCalls
		if len(calls) == 0 {
			calls = parseEmbeddedCalls(result.Text, o.tools.Has)
		}

		if len(calls) == 0 || lastStep {
			text := stripEmbeddedCalls(result.Text)
			if text == "" {
				text = result.Text
			}
			if strings.TrimSpace(text) == "" {
				// Budget exhausted with nothing usable; the caller
				// still gets an answer, never silence.
				text = fmt.Sprintf("I couldn't finish the analysis within my reasoning budget. I gathered %d tool results; ask again to continue.", len(executed))
			}
			o.conversation.Append(model.Message{Role: model.RoleUser, Text: question})
			o.conversation.Append(model.Message{Role: model.RoleAssistant, Text: text})
			return &Response{
				Text:          text,
				Steps:         step,
				ToolsExecuted: executed,
				DurationMs:    time.Since(start).Milliseconds(),
			}, nil
		}

		results := o.executeCalls(ctx, calls)
		for i, res := range results {
			o.session.Stats().RecordToolCall()
			executed = append(executed, ToolCallInfo{
				Tool:       calls[i].Name,
				Success:    res.Success,
				DurationMs: res.DurationMs,
			})
		}

		// Record the assistant turn (its text or, failing that, the
		// invocations it made), then fold results in as a synthetic
		// user turn so the model can react to them.
		assistantText := stripEmbeddedCalls(result.Text)
		if assistantText == "" {
			parts := make([]string, len(calls))
			for i, c := range calls {
				parts[i] = describeCall(c)
			}
			assistantText = "Requesting: " + strings.Join(parts, ", ")
		}
		messages = append(messages,
			model.Message{Role: model.RoleAssistant, Text: assistantText},
			model.Message{Role: model.RoleUser, Text: formatResults(calls, results)},
		)
	}

	// Unreachable: the last iteration always returns.
	return nil, apperrors.System(apperrors.CodeInferFailed, "conversation loop ended without an answer")
}

// executeCalls runs every invocation of one turn in parallel and
// returns results in invocation order. Duplicate tool names both
// execute independently. Failures become data, never errors.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []model.ToolCall) []protocol.ToolResult {
	results := make([]protocol.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = o.executeOne(gctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) executeOne(ctx context.Context, call model.ToolCall) (result protocol.ToolResult) {
	if !o.tools.Has(call.Name) {
		return protocol.ToolResult{Tool: call.Name, Error: fmt.Sprintf("unknown tool: %s", call.Name)}
	}
	if o.executor == nil {
		return protocol.ToolResult{Tool: call.Name, Error: "no tool executor configured"}
	}

	start := time.Now()
	pc := protocol.ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments}

	// An executor panic becomes a failed result; the model sees the
	// failure as data and the loop stays alive.
	defer func() {
		if r := recover(); r != nil {
			result = protocol.ToolResult{
				Tool:       call.Name,
				Error:      fmt.Sprintf("tool executor panicked: %v", r),
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}()

	result = o.executor(ctx, pc, o.credential)
	if result.DurationMs == 0 {
		result.DurationMs = time.Since(start).Milliseconds()
	}
	if result.Tool == "" {
		result.Tool = call.Name
	}
	return result
}

// formatResults serializes tool results for the synthetic user turn.
func formatResults(calls []model.ToolCall, results []protocol.ToolResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool results (%d):\n", len(results))
	for i, res := range results {
		fmt.Fprintf(&b, "\n### %s\n", calls[i].Name)
		if !res.Success {
			fmt.Fprintf(&b, "Failed: %s\n", res.Error)
			continue
		}
		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			fmt.Fprintf(&b, "%v\n", res.Data)
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}

func (o *Orchestrator) buildSystemPrompt(entityContext string) string {
	sc := prompt.SystemContext{
		Tooling:  o.tools.CatalogText(),
		Entities: entityContext,
	}
	if o.engine != nil {
		sc.Persona = o.engine.Summary()
	}
	if o.interactions != nil {
		sc.Preferences = o.interactions.PreferenceSummary()
	}
	return o.builder.BuildSystemPrompt(sc)
}

// ClearConversation drops dialogue continuity, e.g. when the user
// moves on to a different candidate.
func (o *Orchestrator) ClearConversation() {
	o.conversation.Clear()
}
