package embedding

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbedder produces deterministic vectors without a network call.
// Fixed vectors can be registered per text.
type MockEmbedder struct {
	dimension int

	mu    sync.Mutex
	fixed map[string][]float32
	err   error
	calls int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension, fixed: make(map[string][]float32)}
}

// Set makes Embed return vec for text.
func (e *MockEmbedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixed[text] = vec
}

// FailWith makes every subsequent Embed call return err. Pass nil to clear.
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many times Embed has been invoked.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := e.fixed[text]; ok {
			embeddings[i] = append([]float32(nil), vec...)
			continue
		}
		embeddings[i] = hashVector(text, e.dimension)
	}
	return embeddings, nil
}

// hashVector spreads the text's runes over the vector, seeded by an FNV hash
// so that distinct texts rarely collide.
func hashVector(text string, dimension int) []float32 {
	v := make([]float32, dimension)
	if dimension == 0 {
		return v
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := int(h.Sum32() % uint32(dimension))
	for j, r := range text {
		v[(seed+j)%dimension] += float32(r) / 1000.0
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
