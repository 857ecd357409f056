package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/scout-ai/scout/internal/model"
)

// ============================================================
// Embedded Tool-Call Parsing
// ============================================================

var (
	jsonCallsRegex = regexp.MustCompile(`(?s)\[tool_calls:\s*(\[.*?\])\]`)
	xmlToolRegex   = regexp.MustCompile(`(?s)<tool>(\w+)</tool>\s*(?:<arguments>(.*?)</arguments>)?`)
	bracketRegex   = regexp.MustCompile(`\[(\w+)((?:\s+\w+=["'][^"']*["'])+)\s*\]`)
	bracketKVRegex = regexp.MustCompile(`(\w+)=["']([^"']*)["']`)
)

// parseEmbeddedCalls extracts tool invocations from response text for
// backends that don't support native function calling. Three formats
// are recognized, tried in order:
//
//   - [tool_calls: [{"name": "get_person", "arguments": {"person_id": "p1"}}]]
//   - <tool>get_person</tool><arguments>{"person_id": "p1"}</arguments>
//   - [get_person person_id="p1"]
//
// known filters out names that aren't in the catalog so prose inside
// brackets isn't mistaken for an invocation.
func parseEmbeddedCalls(text string, known func(string) bool) []model.ToolCall {
	if calls := parseJSONCalls(text, known); len(calls) > 0 {
		return calls
	}
	if calls := parseXMLCalls(text, known); len(calls) > 0 {
		return calls
	}
	return parseBracketCalls(text, known)
}

// parseJSONCalls handles the [tool_calls: [...]] format, repairing
// malformed JSON before giving up.
func parseJSONCalls(text string, known func(string) bool) []model.ToolCall {
	m := jsonCallsRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}

	var parsed []struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	raw := m[1]
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(fixed), &parsed); err != nil {
			return nil
		}
	}

	var calls []model.ToolCall
	for _, p := range parsed {
		if p.Name == "" || !known(p.Name) {
			continue
		}
		args := p.Arguments
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, model.ToolCall{
			ID:        uuid.NewString(),
			Name:      p.Name,
			Arguments: args,
		})
	}
	return calls
}

// parseXMLCalls handles <tool>name</tool> with an optional JSON
// <arguments> block.
func parseXMLCalls(text string, known func(string) bool) []model.ToolCall {
	matches := xmlToolRegex.FindAllStringSubmatch(text, -1)
	var calls []model.ToolCall
	for _, m := range matches {
		name := m[1]
		if !known(name) {
			continue
		}
		args := map[string]any{}
		if len(m) > 2 && strings.TrimSpace(m[2]) != "" {
			raw := strings.TrimSpace(m[2])
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				if fixed, repairErr := jsonrepair.JSONRepair(raw); repairErr == nil {
					if err := json.Unmarshal([]byte(fixed), &args); err != nil {
						args = map[string]any{"raw": raw}
					}
				} else {
					args = map[string]any{"raw": raw}
				}
			}
		}
		calls = append(calls, model.ToolCall{
			ID:        uuid.NewString(),
			Name:      name,
			Arguments: args,
		})
	}
	return calls
}

// parseBracketCalls handles [name key="value" ...].
func parseBracketCalls(text string, known func(string) bool) []model.ToolCall {
	matches := bracketRegex.FindAllStringSubmatch(text, -1)
	var calls []model.ToolCall
	for _, m := range matches {
		name := m[1]
		if !known(name) {
			continue
		}
		args := map[string]any{}
		for _, kv := range bracketKVRegex.FindAllStringSubmatch(m[2], -1) {
			args[kv[1]] = kv[2]
		}
		calls = append(calls, model.ToolCall{
			ID:        uuid.NewString(),
			Name:      name,
			Arguments: args,
		})
	}
	return calls
}

// stripEmbeddedCalls removes recognized invocation markup from the
// assistant text so the conversation record stays readable.
func stripEmbeddedCalls(text string) string {
	out := jsonCallsRegex.ReplaceAllString(text, "")
	out = xmlToolRegex.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// describeCall renders an invocation for the conversation transcript.
func describeCall(call model.ToolCall) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	return fmt.Sprintf("%s(%s)", call.Name, string(args))
}
