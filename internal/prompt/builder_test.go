package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSystemPromptFullMode(t *testing.T) {
	b := NewBuilder(ModeFull)
	b.MaxSteps = 5
	b.Timezone = "America/New_York"

	out := b.BuildSystemPrompt(SystemContext{
		Persona:     "Active persona: Deep Tech",
		Preferences: "Recent feedback: 2 liked, 1 disliked.",
		Entities:    "Jordan Lee, serial founder.",
		Tooling:     "- get_person: Fetch a person's full profile by ID",
	})

	require.Contains(t, out, "You are Scout")
	require.Contains(t, out, "at most 5 reasoning steps")
	require.Contains(t, out, "Active persona: Deep Tech")
	require.Contains(t, out, "Observed Preferences:")
	require.Contains(t, out, "Known Entities:")
	require.Contains(t, out, "America/New_York")
}

func TestBuildSystemPromptOmitsEmptyBlocks(t *testing.T) {
	out := NewBuilder(ModeFull).BuildSystemPrompt(SystemContext{})

	require.Contains(t, out, "No investment persona is configured.")
	require.Contains(t, out, "Tooling:\nNone.")
	require.NotContains(t, out, "Observed Preferences:")
	require.NotContains(t, out, "Known Entities:")
}

func TestBuildSystemPromptMinimalMode(t *testing.T) {
	out := NewBuilder(ModeMinimal).BuildSystemPrompt(SystemContext{
		Persona: "Active persona: Deep Tech",
		Tooling: "- get_person: fetch",
	})

	require.Contains(t, out, "Tooling:")
	require.NotContains(t, out, "Persona:")
	require.NotContains(t, out, "Current Date & Time:")
}

func TestFinalAnswerPromptForbidsTools(t *testing.T) {
	require.Contains(t, FinalAnswerPrompt(), "Do not request any more tools")
}
