package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Options tune a single inference call. Zero values fall back to the
// adapter's configured defaults.
type Options struct {
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the opaque inference capability consumed by the orchestration
// core. Implementations must honor ctx cancellation and the per-call
// timeout; the core treats every failure (transport, timeout, non-2xx,
// parse) uniformly as a recoverable per-call error.
type Model interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)

	// Info returns information about the model implementation.
	Info() Info
}

// WithTimeout derives a context honoring the per-call timeout option. The
// returned cancel must always be called.
func WithTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are matched by substring against the user prompt; unmatched
// prompts echo a deterministic fallback.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses []mockResponse
	err       error
	delay     time.Duration
	calls     int
}

type mockResponse struct {
	match    string
	response string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock"}}
}

// AddResponse registers a canned completion returned when the user prompt
// contains match. Registrations are checked in order; first match wins.
func (m *MockModel) AddResponse(match, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{match: match, response: response})
}

// FailWith makes every subsequent call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every call block for d before responding, subject to ctx.
func (m *MockModel) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many invocations the mock has served.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Invoke implements Model.
func (m *MockModel) Invoke(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	delay := m.delay
	responses := make([]mockResponse, len(m.responses))
	copy(responses, m.responses)
	m.mu.Unlock()

	ctx, cancel := WithTimeout(ctx, opts)
	defer cancel()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	for _, r := range responses {
		if strings.Contains(userPrompt, r.match) {
			return r.response, nil
		}
	}
	return fmt.Sprintf("Mock response to: %s", userPrompt), nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
