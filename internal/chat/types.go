package chat

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/chattrace/internal/langfuse"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one utterance in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one conversation turn: the prior messages plus the new user
// message, last. ConversationID groups turns of the same conversation and
// UserID attributes them; both are optional.
type Request struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Messages       []Message `json:"messages"`
}

// Validate checks the request is a well-formed turn.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
	}
	if r.Messages[len(r.Messages)-1].Role != RoleUser {
		return errors.New("last message must be from the user")
	}
	return nil
}

// Response is the assistant's reply to one turn. TraceID is set when the
// turn was traced; clients echo it back when submitting feedback.
type Response struct {
	TraceID string         `json:"trace_id,omitempty"`
	Message Message        `json:"message"`
	Model   string         `json:"model"`
	Usage   langfuse.Usage `json:"usage"`
}

// Feedback is a user's quality rating of a previous traced turn.
type Feedback struct {
	TraceID string  `json:"trace_id"`
	Name    string  `json:"name,omitempty"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// Validate checks the feedback references a traced turn.
func (f *Feedback) Validate() error {
	if f.TraceID == "" {
		return errors.New("trace_id is required")
	}
	return nil
}
