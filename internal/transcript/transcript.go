// Package transcript holds the ordered message log shared by the stages of
// one workflow execution.
package transcript

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSystem, RoleAssistant:
		return true
	}
	return false
}

// Content item types.
const (
	ContentInputText  = "input_text"
	ContentOutputText = "output_text"
)

// ContentItem is one piece of message content.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is immutable once created; accessors return copies.
type Message struct {
	role    Role
	content []ContentItem
}

// NewMessage builds a message from role and content items.
func NewMessage(role Role, items ...ContentItem) Message {
	return Message{role: role, content: append([]ContentItem(nil), items...)}
}

// UserText builds a user message with a single input_text item.
func UserText(text string) Message {
	return NewMessage(RoleUser, ContentItem{Type: ContentInputText, Text: text})
}

// AssistantText builds an assistant message with a single output_text item.
func AssistantText(text string) Message {
	return NewMessage(RoleAssistant, ContentItem{Type: ContentOutputText, Text: text})
}

// Role returns the message author.
func (m Message) Role() Role { return m.role }

// Content returns a copy of the content items.
func (m Message) Content() []ContentItem {
	return append([]ContentItem(nil), m.content...)
}

// Text joins the text of every content item with newlines.
func (m Message) Text() string {
	parts := make([]string, 0, len(m.content))
	for _, c := range m.content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON renders the message as {"role": ..., "content": [...]}.
func (m Message) MarshalJSON() ([]byte, error) {
	return marshalMessage(m)
}

// Transcript is an append-only message log. It is owned by a single
// execution and is not safe for concurrent use.
type Transcript struct {
	messages []Message
}

// New returns a transcript seeded with msgs.
func New(msgs ...Message) *Transcript {
	t := &Transcript{}
	t.Append(msgs...)
	return t
}

// Append adds msgs at the end. Existing messages are never reordered or
// removed.
func (t *Transcript) Append(msgs ...Message) {
	t.messages = append(t.messages, msgs...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Messages returns a snapshot that callers may keep or modify freely.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Since returns the messages appended at or after position n.
func (t *Transcript) Since(n int) []Message {
	if n < 0 {
		n = 0
	}
	if n >= len(t.messages) {
		return nil
	}
	return append([]Message(nil), t.messages[n:]...)
}

// Last returns the final message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
