package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vidauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/users"
)

// RepositoryManager is the credential store seen by the services: the
// identity repository plus the refresh-token slot, and a way to change both
// atomically where the backend allows it.
type RepositoryManager interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository

	// WithinTx runs fn with repositories sharing one transaction. Backends
	// without transactions run fn directly.
	WithinTx(ctx context.Context, fn func(ctx context.Context, u users.Repository, rt refreshtokens.Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}
