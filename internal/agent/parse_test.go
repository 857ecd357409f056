package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func knownTools(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseJSONToolCalls(t *testing.T) {
	text := `I'll check the profile. [tool_calls: [{"name": "get_person", "arguments": {"person_id": "p-9"}}]]`
	calls := parseEmbeddedCalls(text, knownTools("get_person"))

	require.Len(t, calls, 1)
	require.Equal(t, "get_person", calls[0].Name)
	require.Equal(t, "p-9", calls[0].Arguments["person_id"])
	require.NotEmpty(t, calls[0].ID)
}

func TestParseJSONToolCallsMultiple(t *testing.T) {
	text := `[tool_calls: [{"name": "get_person", "arguments": {"person_id": "a"}}, {"name": "get_company", "arguments": {"company_id": "b"}}]]`
	calls := parseEmbeddedCalls(text, knownTools("get_person", "get_company"))

	require.Len(t, calls, 2)
	require.Equal(t, "get_person", calls[0].Name)
	require.Equal(t, "get_company", calls[1].Name)
}

func TestParseRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and single quotes, the kind of JSON small local
	// models actually emit.
	text := `[tool_calls: [{'name': 'get_person', 'arguments': {'person_id': 'p-1',}}]]`
	calls := parseEmbeddedCalls(text, knownTools("get_person"))

	require.Len(t, calls, 1)
	require.Equal(t, "get_person", calls[0].Name)
	require.Equal(t, "p-1", calls[0].Arguments["person_id"])
}

func TestParseXMLToolCall(t *testing.T) {
	text := `<tool>score_candidate</tool><arguments>{"highlights": ["serial_founder"]}</arguments>`
	calls := parseEmbeddedCalls(text, knownTools("score_candidate"))

	require.Len(t, calls, 1)
	require.Equal(t, "score_candidate", calls[0].Name)
	highlights, ok := calls[0].Arguments["highlights"].([]any)
	require.True(t, ok)
	require.Equal(t, "serial_founder", highlights[0])
}

func TestParseBracketToolCall(t *testing.T) {
	text := `[get_company company_id="c-3"]`
	calls := parseEmbeddedCalls(text, knownTools("get_company"))

	require.Len(t, calls, 1)
	require.Equal(t, "get_company", calls[0].Name)
	require.Equal(t, "c-3", calls[0].Arguments["company_id"])
}

func TestParseIgnoresUnknownNames(t *testing.T) {
	text := `[tool_calls: [{"name": "rm_rf", "arguments": {}}]] [something key="value"]`
	calls := parseEmbeddedCalls(text, knownTools("get_person"))
	require.Empty(t, calls)
}

func TestParsePlainTextYieldsNothing(t *testing.T) {
	text := "This founder [raised a seed round] and looks promising."
	calls := parseEmbeddedCalls(text, knownTools("get_person", "get_company"))
	require.Empty(t, calls)
}

func TestStripEmbeddedCalls(t *testing.T) {
	text := `Checking now. [tool_calls: [{"name": "get_person", "arguments": {}}]]`
	require.Equal(t, "Checking now.", stripEmbeddedCalls(text))
}
