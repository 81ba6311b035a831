// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
)

// LLMClient is a mock implementation of ports.LLMClient. It records every
// prompt so tests can assert call counts (e.g. template mode must never
// call the model).
type LLMClient struct {
	mu       sync.Mutex
	Response string
	Err      error

	// Responses, if non-empty, is returned in order before falling back
	// to Response.
	Responses []string

	Prompts []string
}

// Generate returns the configured response or error and records the prompt.
func (m *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return m.Response, nil
}

// Calls returns how many times Generate was invoked.
func (m *LLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// Summarizer is a mock implementation of ports.Summarizer.
type Summarizer struct {
	mu      sync.Mutex
	Summary string
	Err     error
	Inputs  []string
}

// Summarize returns the configured summary or error and records the input.
func (m *Summarizer) Summarize(ctx context.Context, text string, targetLength int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Inputs = append(m.Inputs, text)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Summary != "" {
		return m.Summary, nil
	}
	if len(text) > targetLength {
		return text[:targetLength], nil
	}
	return text, nil
}

// Calls returns how many times Summarize was invoked.
func (m *Summarizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}
