package mock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/wrench/ai"
)

// MockCompleter is a test double for ai.Completer.
// By default it answers with its token script: Complete returns the tokens
// joined, CompleteStream emits them one by one.
type MockCompleter struct {
	// Tokens is the default script.
	Tokens []string

	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// CompleteStreamFunc is called by CompleteStream if set.
	CompleteStreamFunc func(ctx context.Context, prompt string, onToken ai.TokenFunc) error

	callCount atomic.Int64

	mu      sync.Mutex
	prompts []string
}

// NewMockCompleter creates a mock completer that replays tokens.
func NewMockCompleter(tokens ...string) *MockCompleter {
	return &MockCompleter{Tokens: tokens}
}

// Complete returns the joined token script or delegates to CompleteFunc.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.record(prompt)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return strings.Join(m.Tokens, ""), nil
}

// CompleteStream emits the token script or delegates to CompleteStreamFunc.
// Context cancellation is checked between tokens.
func (m *MockCompleter) CompleteStream(ctx context.Context, prompt string, onToken ai.TokenFunc) error {
	m.record(prompt)

	if m.CompleteStreamFunc != nil {
		return m.CompleteStreamFunc(ctx, prompt, onToken)
	}
	for _, tok := range m.Tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(ctx, tok); err != nil {
			return err
		}
	}
	return nil
}

// CallCount returns the number of times any method was called.
func (m *MockCompleter) CallCount() int {
	return int(m.callCount.Load())
}

// LastPrompt returns the most recent prompt, or "" if none was sent.
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.callCount.Store(0)
	m.mu.Lock()
	m.prompts = nil
	m.mu.Unlock()
	m.CompleteFunc = nil
	m.CompleteStreamFunc = nil
}

func (m *MockCompleter) record(prompt string) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
}
