package refreshtokens

import (
	"context"
	"sync"
)

// MemoryRepository is the in-process slot store used with the memory
// identity backend.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]string)}
}

func (r *MemoryRepository) Set(_ context.Context, userID, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[userID] = digest
	return nil
}

func (r *MemoryRepository) CompareAndSwap(_ context.Context, userID, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tokens[userID] != expected {
		return false, nil
	}
	r.tokens[userID] = next
	return true, nil
}

func (r *MemoryRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	return nil
}
