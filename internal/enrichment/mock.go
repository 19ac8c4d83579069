package enrichment

import (
	"context"
	"sync"
)

// MockCompleter is a scripted Completer for tests and local runs without an
// API key. Responses are returned in order; the last one repeats.
type MockCompleter struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
}

// NewMockCompleter returns a completer that answers with responses in turn.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{Responses: responses}
}

// Complete records the prompt and returns the next scripted response.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", ErrProviderEmpty
	}
	i := len(m.Prompts) - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Calls returns how many prompts were received.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
