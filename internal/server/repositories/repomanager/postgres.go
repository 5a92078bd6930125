// Package repomanager wires the repository implementations into a credential
// store: PostgreSQL (with goose migrations) or in-memory identities, with
// the refresh-token slot kept either next to the identity or in Redis.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vidauth/internal/dbx"
	"github.com/dmitrijs2005/vidauth/internal/server/migrations"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct {
	db *sql.DB
	// tokens overrides the users.refresh_token column when set.
	tokens refreshtokens.Repository
}

// NewPostgresRepositoryManager binds the manager to db. A nil tokens keeps
// refresh tokens in the users table.
func NewPostgresRepositoryManager(db *sql.DB, tokens refreshtokens.Repository) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db, tokens: tokens}
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return users.NewPostgresRepository(m.db)
}

func (m *PostgresRepositoryManager) RefreshTokens() refreshtokens.Repository {
	if m.tokens != nil {
		return m.tokens
	}
	return refreshtokens.NewPostgresRepository(m.db)
}

func (m *PostgresRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, u users.Repository, rt refreshtokens.Repository) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var rt refreshtokens.Repository = refreshtokens.NewPostgresRepository(tx)
		if m.tokens != nil {
			rt = m.tokens
		}
		return fn(ctx, users.NewPostgresRepository(tx), rt)
	})
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}
