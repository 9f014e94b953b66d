// Package llm abstracts the hosted multimodal chat-completion service the
// analysis session depends on. Two bindings exist: OpenAI (default) and
// Gemini. Both surface failures through the same error taxonomy so the
// session layer never sees provider-specific shapes.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/finlens/finlens/internal/document"
)

// Role tags one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn passed back to the model as history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request carries everything for a single completion call: the fixed system
// instruction, the full document grounding (text plus image attachments),
// the ordered prior turns, and the new question.
type Request struct {
	System   string
	Context  string
	Images   []document.ImageBlob
	History  []Message
	Question string
}

// Client is the abstract completion capability.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Close()
}

// Kind classifies a completion failure.
type Kind int

const (
	KindAuth Kind = iota + 1
	KindRateLimit
	KindNetwork
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is the tagged failure every binding maps provider errors into.
type Error struct {
	Kind    Kind
	Status  int // HTTP status if one was received, else 0
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("llm %s error: %s", e.Kind, e.Message)
}

// KindOf returns the failure kind, or 0 if err is not an llm error.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return 0
}

// kindFromStatus maps an HTTP status to the taxonomy.
func kindFromStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status >= 500:
		return KindNetwork
	default:
		return KindMalformed
	}
}
