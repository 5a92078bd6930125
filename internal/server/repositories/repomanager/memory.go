package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vidauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory.
type MemoryRepositoryManager struct {
	users  users.Repository
	tokens refreshtokens.Repository
}

// NewMemoryRepositoryManager returns a fresh store. A nil tokens uses an
// in-memory refresh-token slot.
func NewMemoryRepositoryManager(tokens refreshtokens.Repository) *MemoryRepositoryManager {
	if tokens == nil {
		tokens = refreshtokens.NewMemoryRepository()
	}
	return &MemoryRepositoryManager{users: users.NewMemoryRepository(), tokens: tokens}
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.tokens
}

func (m *MemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, u users.Repository, rt refreshtokens.Repository) error) error {
	return fn(ctx, m.users, m.tokens)
}

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
