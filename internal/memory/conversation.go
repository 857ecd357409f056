package memory

import (
	"sync"

	"github.com/scout-ai/scout/internal/model"
)

// DefaultConversationCap bounds the dialogue window kept for prompts.
const DefaultConversationCap = 20

// Conversation is a capped ordered window of dialogue turns. When the
// cap is exceeded the oldest turns fall off. Safe for concurrent use.
type Conversation struct {
	mu    sync.Mutex
	turns []model.Message
	cap   int
}

// NewConversation builds a window with the given capacity (<=0 uses
// the default).
func NewConversation(capacity int) *Conversation {
	if capacity <= 0 {
		capacity = DefaultConversationCap
	}
	return &Conversation{cap: capacity}
}

// Append adds one turn, evicting the oldest when over capacity.
func (c *Conversation) Append(msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, msg)
	if len(c.turns) > c.cap {
		c.turns = append([]model.Message(nil), c.turns[len(c.turns)-c.cap:]...)
	}
}

// Turns returns a copy of the current window, oldest first.
func (c *Conversation) Turns() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of turns held.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Clear drops the whole window.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
