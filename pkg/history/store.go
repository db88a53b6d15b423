// Package history persists the chat interactions of self-hosted assistant threads.
package history

import (
	"context"
	"errors"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
)

// DefaultMaxInteractions is the per-thread retention limit
const DefaultMaxInteractions = 50

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("history store is closed")

// Store keeps the interactions of each thread in insertion order
type Store interface {
	// Append stores an interaction at the end of the thread. The oldest interactions are
	// dropped once the retention limit is exceeded.
	Append(ctx context.Context, thread string, interaction genai.Interaction) error
	// Interactions returns a copy of the thread's interactions, oldest first
	Interactions(ctx context.Context, thread string) ([]genai.Interaction, error)
	// Reset removes every interaction of the thread
	Reset(ctx context.Context, thread string) error
	Close() error
}

func normalizeLimit(max int) int {
	if max == 0 {
		return DefaultMaxInteractions
	}
	return max
}
