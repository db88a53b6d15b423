package history

import (
	"context"
	"sync"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
)

// MemoryStore keeps interactions in process memory
type MemoryStore struct {
	threads         map[string][]genai.Interaction
	maxInteractions int
	closed          bool
	mu              sync.RWMutex
}

// NewMemoryStore creates a store retaining at most maxInteractions per thread
// (0 = default, <0 = unlimited)
func NewMemoryStore(maxInteractions int) *MemoryStore {
	return &MemoryStore{
		threads:         make(map[string][]genai.Interaction),
		maxInteractions: normalizeLimit(maxInteractions),
	}
}

func (m *MemoryStore) Append(_ context.Context, thread string, interaction genai.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	interactions := append(m.threads[thread], interaction)
	if m.maxInteractions > 0 && len(interactions) > m.maxInteractions {
		interactions = interactions[len(interactions)-m.maxInteractions:]
	}
	m.threads[thread] = interactions
	return nil
}

func (m *MemoryStore) Interactions(_ context.Context, thread string) ([]genai.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	// Return a copy to avoid race conditions
	result := make([]genai.Interaction, len(m.threads[thread]))
	copy(result, m.threads[thread])
	return result, nil
}

func (m *MemoryStore) Reset(_ context.Context, thread string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.threads, thread)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}
