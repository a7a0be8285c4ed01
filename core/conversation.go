package core

import (
	"fmt"
	"sync"
	"time"
)

// Message roles within a conversation.
const (
	RoleInterviewer = "interviewer"
	RolePersona     = "persona"
)

// Message is a single utterance in a conversation. Immutable once appended;
// the timestamp is used only for ordering and display.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the turn-by-turn transcript between the interviewer and
// one persona. It is append-only while the owning driver runs; every other
// component reads defensive snapshots. Safe for concurrent access.
type Conversation struct {
	id        string
	personaID string

	mu        sync.RWMutex
	messages  []Message
	summary   string
	completed bool
	failure   string
}

// ConversationSnapshot is a consistent, immutable copy of a conversation.
type ConversationSnapshot struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	Messages  []Message `json:"messages"`
	Summary   string    `json:"summary,omitempty"`
	Completed bool      `json:"completed"`
	Error     string    `json:"error,omitempty"`
}

// NewConversation creates an empty conversation bound to a persona.
func NewConversation(id, personaID string) *Conversation {
	return &Conversation{id: id, personaID: personaID}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string { return c.id }

// PersonaID returns the identifier of the interviewed persona.
func (c *Conversation) PersonaID() string { return c.personaID }

// Append adds a message to the transcript. Appends to a completed
// conversation are rejected so a confirmed stop point stays final.
func (c *Conversation) Append(role, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return fmt.Errorf("conversation %s is completed", c.id)
	}
	c.messages = append(c.messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	return nil
}

// Len returns the number of messages in the transcript.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Turns returns the number of completed interviewer/persona exchanges.
func (c *Conversation) Turns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.messages {
		if m.Role == RolePersona {
			n++
		}
	}
	return n
}

// SetSummary records the end-of-conversation summary.
func (c *Conversation) SetSummary(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = s
}

// Fail records a non-retryable failure note. The partial transcript is
// retained, never discarded.
func (c *Conversation) Fail(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = reason
}

// Complete marks the conversation finished. Idempotent.
func (c *Conversation) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = true
}

// Completed reports whether the conversation has finished.
func (c *Conversation) Completed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completed
}

// Snapshot returns a defensive copy of the conversation state.
func (c *Conversation) Snapshot() ConversationSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return ConversationSnapshot{
		ID:        c.id,
		PersonaID: c.personaID,
		Messages:  msgs,
		Summary:   c.summary,
		Completed: c.completed,
		Error:     c.failure,
	}
}
