package session

import "errors"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrTurnInFlight is returned when a user message is appended while the
	// previous user message has no assistant reply yet.
	ErrTurnInFlight = errors.New("previous turn has no assistant reply")
	// ErrNoPendingUser is returned when an assistant message is appended or
	// a rollback is attempted without a pending user message. A failed
	// rollback violates the history invariant and must be logged loudly by
	// the caller.
	ErrNoPendingUser = errors.New("no pending user message")
)

// Message is a single conversation message. Order is append order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered per-session message log. Outside of an
// in-flight turn its history never ends with two consecutive user messages;
// AppendUser opens a turn, and either AppendAssistant or RollbackLastUser
// closes it. Conversation does no locking of its own: callers serialize
// access through the owning Session.
type Conversation struct {
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// AppendUser appends a user message, opening a turn. It fails if the
// previous user message has not been answered or rolled back yet.
func (c *Conversation) AppendUser(content string) error {
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == RoleUser {
		return ErrTurnInFlight
	}
	c.messages = append(c.messages, Message{Role: RoleUser, Content: content})
	return nil
}

// AppendAssistant completes the in-flight turn. It is only valid immediately
// after a pending user message.
func (c *Conversation) AppendAssistant(content string) error {
	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != RoleUser {
		return ErrNoPendingUser
	}
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: content})
	return nil
}

// RollbackLastUser removes the trailing user message of a failed turn,
// restoring the history invariant. It fails if the last message is not a
// user message.
func (c *Conversation) RollbackLastUser() error {
	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != RoleUser {
		return ErrNoPendingUser
	}
	c.messages = c.messages[:n-1]
	return nil
}

// Truncate drops the oldest messages so at most cap remain. The cap counts
// messages, not tokens.
func (c *Conversation) Truncate(cap int) {
	if cap > 0 && len(c.messages) > cap {
		c.messages = append([]Message(nil), c.messages[len(c.messages)-cap:]...)
	}
}

// Clear empties the history.
func (c *Conversation) Clear() {
	c.messages = nil
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Snapshot returns a copy of the history for read-only use.
func (c *Conversation) Snapshot() []Message {
	return append([]Message(nil), c.messages...)
}
