// Package gateway defines the single abstraction over the language-model
// backend used by the simulation engine: structured generation (personas,
// insights) and conversational replies (interview turns). Provider adapters
// live in subpackages; Retrying adds transient-failure retry with backoff
// and WithGate bounds global in-flight calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoJSON reports that the model's output contained no parseable JSON
// value. Provider adapters wrap it in a non-retryable GatewayError; callers
// that can rephrase the request (corrective retry) match it with errors.Is.
var ErrNoJSON = errors.New("no JSON value in model output")

// Turn is one utterance in a conversational request, already mapped to the
// answering identity's perspective.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Conversational turn roles.
const (
	TurnUser      = "user"
	TurnAssistant = "assistant"
)

// StructuredRequest asks the model for a machine-parseable JSON value.
type StructuredRequest struct {
	System     string // answering identity / task framing
	Prompt     string // the concrete request
	SchemaHint string // description of the expected JSON shape, appended to the prompt
	MaxTokens  int64  // 0 uses the adapter default
}

// ReplyRequest asks the model for a conversational reply given a transcript.
type ReplyRequest struct {
	System    string // answering identity (interviewer or persona profile)
	Turns     []Turn // transcript from the answering identity's perspective
	MaxTokens int64  // 0 uses the adapter default
}

// Gateway is the minimal interface the engine needs from a language-model
// provider. Implementations classify failures as retryable or not via
// core.GatewayError so callers can apply their retry policies.
type Gateway interface {
	// GenerateStructured returns a parsed JSON value for the prompt.
	GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)

	// GenerateReply returns the next conversational reply for the transcript.
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

// Mock is a lightweight in-memory Gateway useful for tests and examples.
// Responses are selected by substring match against the request text, in
// registration order; unmatched requests fall back to canned defaults.
// Queued errors are returned before any matching happens, which makes retry
// behavior easy to script.
type Mock struct {
	mu              sync.Mutex
	structuredRules []mockRule
	replyRules      []mockRule
	structuredErrs  []error
	replyErrs       []error
	structuredCalls int
	replyCalls      int
}

type mockRule struct {
	match   string
	payload string
}

// NewMock constructs an empty mock gateway.
func NewMock() *Mock {
	return &Mock{}
}

// StubStructured registers a canned JSON payload for structured requests
// whose system+prompt text contains match. An empty match matches anything.
func (m *Mock) StubStructured(match, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredRules = append(m.structuredRules, mockRule{match: match, payload: payload})
}

// StubReply registers a canned reply for conversational requests whose
// system text or any turn contains match.
func (m *Mock) StubReply(match, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyRules = append(m.replyRules, mockRule{match: match, payload: reply})
}

// FailStructured queues errors returned by the next structured calls, before
// any stub matching. A nil entry lets that call fall through to stub
// matching, which makes it easy to fail only the Nth call.
func (m *Mock) FailStructured(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredErrs = append(m.structuredErrs, errs...)
}

// FailReply queues errors returned by the next reply calls.
func (m *Mock) FailReply(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyErrs = append(m.replyErrs, errs...)
}

// StructuredCalls returns the number of GenerateStructured invocations.
func (m *Mock) StructuredCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structuredCalls
}

// ReplyCalls returns the number of GenerateReply invocations.
func (m *Mock) ReplyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replyCalls
}

// GenerateStructured implements Gateway.
func (m *Mock) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredCalls++
	if len(m.structuredErrs) > 0 {
		err := m.structuredErrs[0]
		m.structuredErrs = m.structuredErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	haystack := req.System + "\n" + req.Prompt + "\n" + req.SchemaHint
	for _, rule := range m.structuredRules {
		if rule.match == "" || strings.Contains(haystack, rule.match) {
			return json.RawMessage(rule.payload), nil
		}
	}
	return json.RawMessage(`{}`), nil
}

// GenerateReply implements Gateway.
func (m *Mock) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyCalls++
	if len(m.replyErrs) > 0 {
		err := m.replyErrs[0]
		m.replyErrs = m.replyErrs[1:]
		if err != nil {
			return "", err
		}
	}
	haystack := req.System
	for _, t := range req.Turns {
		haystack += "\n" + t.Content
	}
	for _, rule := range m.replyRules {
		if rule.match == "" || strings.Contains(haystack, rule.match) {
			return rule.payload, nil
		}
	}
	last := ""
	if len(req.Turns) > 0 {
		last = req.Turns[len(req.Turns)-1].Content
	}
	return fmt.Sprintf("Mock reply to: %s", last), nil
}
