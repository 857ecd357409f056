// Package prompt builds system prompts for Scout.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeFull    Mode = "full"
	ModeMinimal Mode = "minimal"
)

type Builder struct {
	Mode     Mode
	MaxSteps int
	Timezone string
}

// SystemContext carries the dynamic blocks assembled per request.
type SystemContext struct {
	Persona     string // active persona summary
	Preferences string // interaction-memory preference summary
	Entities    string // entity context already fetched this session
	Tooling     string // tool catalog text
}

func NewBuilder(mode Mode) *Builder {
	return &Builder{
		Mode:     mode,
		MaxSteps: 3,
	}
}

func (b *Builder) BuildSystemPrompt(ctx SystemContext) string {
	var sections []string
	sections = append(sections, "Identity:\nYou are Scout, an on-device deal screening assistant for an investor. Be concise and evidence-driven; cite the data your tools returned.")
	sections = append(sections, "Tooling:\n"+nonEmpty(ctx.Tooling, "None."))
	sections = append(sections, fmt.Sprintf("Budget:\nYou have at most %d reasoning steps. Use tools early, then answer. When a tool fails, work with what you have and say so.", b.maxSteps()))

	if b.Mode == ModeFull {
		sections = append(sections, "Persona:\n"+nonEmpty(ctx.Persona, "No investment persona is configured."))
		if strings.TrimSpace(ctx.Preferences) != "" {
			sections = append(sections, "Observed Preferences:\n"+ctx.Preferences)
		}
		if strings.TrimSpace(ctx.Entities) != "" {
			sections = append(sections, "Known Entities:\n"+ctx.Entities)
		}
		sections = append(sections, "Current Date & Time:\n"+b.timeLine())
	}

	return strings.Join(sections, "\n\n")
}

// FinalAnswerPrompt is the forced-wrap-up instruction issued when the
// step budget runs out with tool calls still pending.
func FinalAnswerPrompt() string {
	return "You have reached your reasoning budget. Do not request any more tools. Based on the information gathered so far, provide your final analysis."
}

func (b *Builder) maxSteps() int {
	if b.MaxSteps > 0 {
		return b.MaxSteps
	}
	return 3
}

func (b *Builder) timeLine() string {
	if b.Timezone != "" {
		return fmt.Sprintf("Timezone: %s", b.Timezone)
	}
	return fmt.Sprintf("Timezone: %s", time.Now().Location())
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
