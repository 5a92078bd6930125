package refreshtokens

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/dbx"
)

// PostgresRepository keeps the fingerprint in users.refresh_token, so the
// rotation is a single conditional UPDATE.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Set(ctx context.Context, userID, digest string) error {
	query := `UPDATE users SET refresh_token = $2 WHERE id = $1`

	n, err := r.exec(ctx, query, userID, digest)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CompareAndSwap(ctx context.Context, userID, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}

	query := `UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`

	n, err := r.exec(ctx, query, userID, expected, next)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1`

	_, err := r.exec(ctx, query, userID)
	return err
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
