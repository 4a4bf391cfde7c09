package llm

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MockEmbedder is a deterministic Embedder for tests. If a text has an entry
// in Vectors it is returned (normalized); otherwise a unit vector is derived
// from a hash of the text, so distinct texts get stable, distinct embeddings.
type MockEmbedder struct {
	Dim     int                  // vector dimension, default 4
	Vectors map[string][]float32 // fixed vectors per exact text
	Err     error                // returned from every call when set
	Delay   time.Duration        // simulated latency, honors ctx cancellation

	mu    sync.Mutex
	calls []string
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	if v, ok := m.Vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		Normalize(out)
		return out, nil
	}

	dim := m.Dim
	if dim <= 0 {
		dim = 4
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int32(seed>>32)) / float32(1<<31)
	}
	Normalize(vec)
	return vec, nil
}

// Calls returns the texts embedded so far.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockGenerator is a canned Generator for tests. Respond takes priority over
// Response when set.
type MockGenerator struct {
	Response string                                     // fixed response text
	Respond  func(model, prompt string) (string, error) // dynamic response
	Err      error                                      // returned from every call when set

	mu      sync.Mutex
	prompts []string
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return m.GenerateWith(ctx, "mock-model", prompt)
}

// GenerateWith implements Generator.
func (m *MockGenerator) GenerateWith(_ context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Respond != nil {
		return m.Respond(model, prompt)
	}
	return m.Response, nil
}

// Prompts returns the prompts generated so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
