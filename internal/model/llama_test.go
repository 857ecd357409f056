package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeMessagesTextOnly(t *testing.T) {
	encoded := encodeMessages([]Message{
		{Role: RoleSystem, Text: "You are Scout."},
		{Role: RoleUser, Text: "Who is this founder?"},
	})

	require.Len(t, encoded, 2)
	require.Equal(t, "system", encoded[0]["role"])
	require.Equal(t, "You are Scout.", encoded[0]["content"])
	require.Equal(t, "Who is this founder?", encoded[1]["content"])
}

func TestEncodeMessagesForwardsImages(t *testing.T) {
	encoded := encodeMessages([]Message{{
		Role:   RoleUser,
		Text:   "What does this pitch slide say?",
		Images: []string{"file:///tmp/slide-1.png", "file:///tmp/slide-2.png"},
	}})

	require.Len(t, encoded, 1)
	parts, ok := encoded[0]["content"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, parts, 3)
	require.Equal(t, "text", parts[0]["type"])
	require.Equal(t, "What does this pitch slide say?", parts[0]["text"])
	require.Equal(t, "image_url", parts[1]["type"])
	require.Equal(t, map[string]any{"url": "file:///tmp/slide-1.png"}, parts[1]["image_url"])
	require.Equal(t, map[string]any{"url": "file:///tmp/slide-2.png"}, parts[2]["image_url"])
}

func TestEncodeMessagesImageOnlyTurn(t *testing.T) {
	encoded := encodeMessages([]Message{{
		Role:   RoleUser,
		Images: []string{"file:///tmp/deck.png"},
	}})

	parts, ok := encoded[0]["content"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, parts, 1)
	require.Equal(t, "image_url", parts[0]["type"])
}

func TestToolCallAccumulatorStitchesFragments(t *testing.T) {
	var acc toolCallAccumulator

	var first chunkToolCall
	first.ID = "call-1"
	first.Function.Name = "get_person"
	first.Function.Arguments = `{"person`
	acc.add(first)

	var rest chunkToolCall
	rest.Function.Arguments = `_id":"p-1"}`
	acc.add(rest)

	calls := acc.finish()
	require.Len(t, calls, 1)
	require.Equal(t, "call-1", calls[0].ID)
	require.Equal(t, "get_person", calls[0].Name)
	require.Equal(t, map[string]any{"person_id": "p-1"}, calls[0].Arguments)
}
