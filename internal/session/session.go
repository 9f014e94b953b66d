// Package session implements the document analysis conversation controller.
// A session binds one immutable document context to an append-only history
// of question/answer turns and drives the LLM round trips.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finlens/finlens/internal/document"
	"github.com/finlens/finlens/internal/llm"
)

// State names the session lifecycle phase.
type State string

const (
	StateEmpty    State = "empty"    // no document context yet
	StateReady    State = "ready"    // context set, no question answered
	StateAwaiting State = "awaiting" // one request in flight
	StateAnswered State = "answered" // like ready, but at least one answer exists
	StateFailed   State = "failed"   // last call errored; reset to continue
)

var (
	ErrNoContext      = errors.New("session has no document context")
	ErrAlreadyStarted = errors.New("session already has a document context")
	ErrBusy           = errors.New("a question is already in flight for this session")
	ErrFailed         = errors.New("session is in a failed state; reset it first")
	ErrNotFailed      = errors.New("session is not in a failed state")
)

// Turn is one message of the transcript. Turns are appended in submission
// order and never reordered or removed.
type Turn struct {
	Role    llm.Role  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Options configures per-session request construction.
type Options struct {
	SystemPrompt string        // fixed system instruction; AnalystPrompt if empty
	AttachImages int           // cap on image attachments per request
	Timeout      time.Duration // bound on each LLM round trip
	Stats        *llm.Stats    // optional latency/failure recorder
}

// Session is the stateful conversation controller. All state is guarded by
// mu except during the LLM round trip, which runs unlocked so concurrent
// sessions proceed independently while this one rejects a second Ask.
type Session struct {
	ID        string
	CreatedAt time.Time

	client llm.Client
	opts   Options

	mu      sync.Mutex
	state   State
	doc     *document.Context
	history []Turn
	lastErr error
}

func New(client llm.Client, opts Options) *Session {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = AnalystPrompt
	}
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		client:    client,
		opts:      opts,
		state:     StateEmpty,
	}
}

// Start sets the document context exactly once and readies the session.
func (s *Session) Start(doc *document.Context) error {
	if doc == nil {
		return ErrNoContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEmpty {
		return ErrAlreadyStarted
	}
	s.doc = doc
	s.state = StateReady
	return nil
}

// Ask submits a question, blocks for the reply, and folds the exchange into
// history. Single-flight: while one call is awaiting its reply, further
// calls return ErrBusy. On failure the question is not appended and the
// session moves to Failed with the error retained; history is untouched.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	switch s.state {
	case StateEmpty:
		s.mu.Unlock()
		return "", ErrNoContext
	case StateAwaiting:
		s.mu.Unlock()
		return "", ErrBusy
	case StateFailed:
		s.mu.Unlock()
		return "", ErrFailed
	}
	req := s.buildRequest(question)
	s.state = StateAwaiting
	s.mu.Unlock()

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := s.client.Complete(callCtx, req)
	if s.opts.Stats != nil {
		s.opts.Stats.Record(time.Since(start), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return "", err
	}

	now := time.Now()
	s.history = append(s.history,
		Turn{Role: llm.RoleUser, Content: question, At: now},
		Turn{Role: llm.RoleAssistant, Content: answer, At: now},
	)
	s.state = StateAnswered
	s.lastErr = nil
	return answer, nil
}

// Analyze runs the synthetic first question that produces the initial
// document analysis.
func (s *Session) Analyze(ctx context.Context) (string, error) {
	return s.Ask(ctx, InitialAnalysisPrompt)
}

// ResetError recovers a failed session without touching history. The
// session returns to Answered when answers already exist, Ready otherwise,
// and the same question may be resubmitted.
func (s *Session) ResetError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return ErrNotFailed
	}
	s.lastErr = nil
	if len(s.history) > 0 {
		s.state = StateAnswered
	} else {
		s.state = StateReady
	}
	return nil
}

// buildRequest assembles the full completion request: system instruction,
// the entire context text (already truncated by the builder, never
// re-truncated here), capped image attachments, the ordered history, and
// the new question. Caller holds mu.
func (s *Session) buildRequest(question string) llm.Request {
	images := s.doc.Images
	if s.opts.AttachImages >= 0 && len(images) > s.opts.AttachImages {
		images = images[:s.opts.AttachImages]
	}

	history := make([]llm.Message, len(s.history))
	for i, t := range s.history {
		history[i] = llm.Message{Role: t.Role, Content: t.Content}
	}

	return llm.Request{
		System:   s.opts.SystemPrompt,
		Context:  s.doc.FullText,
		Images:   images,
		History:  history,
		Question: question,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastErr returns the error that moved the session to Failed, if any.
func (s *Session) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// History returns a copy of the transcript in submission order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Document returns the context snapshot the session is grounded in.
func (s *Session) Document() *document.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}
