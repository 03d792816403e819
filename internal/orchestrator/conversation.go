package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/davidh/jarvis/internal/toolbelt"
)

// Conversation origins, recorded alongside the session transcript.
const (
	SourceREPL    = "repl"
	SourceReactor = "reactor"
)

// Conversation is an append-only message history for one session. History is
// never rewritten; denied tool calls and errors stay on the record so the
// model sees exactly what happened.
type Conversation struct {
	mu       sync.Mutex
	id       string
	source   string
	messages []toolbelt.AnthropicMessage
}

// NewConversation creates an empty conversation with a fresh session ID,
// attributed to the given origin. An empty source means the interactive
// session.
func NewConversation(source string) *Conversation {
	if source == "" {
		source = SourceREPL
	}
	return &Conversation{
		id:     uuid.New().String(),
		source: source,
	}
}

// ID returns the session identifier.
func (c *Conversation) ID() string {
	return c.id
}

// Source returns the conversation's origin.
func (c *Conversation) Source() string {
	return c.source
}

// Append adds messages to the history.
func (c *Conversation) Append(messages ...toolbelt.AnthropicMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, messages...)
}

// Messages returns a snapshot of the history.
func (c *Conversation) Messages() []toolbelt.AnthropicMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]toolbelt.AnthropicMessage(nil), c.messages...)
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
