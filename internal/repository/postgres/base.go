package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *BaseRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// translate maps driver errors onto the application taxonomy. Anything it
// does not recognise is wrapped with the operation name.
func translate(err error, op, resource string, id interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.NotFound(resource, id)
	case pqCode(err) == pqUniqueViolation:
		return apperrors.Conflict(fmt.Sprintf("%s conflicts with an existing record", resource))
	case pqCode(err) == pqForeignKeyViolation:
		return apperrors.NotFound("referenced record", id)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func requireRows(result sql.Result, resource string, id interface{}) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, id)
	}
	return nil
}

// filterBuilder appends positional predicates the way hand-written queries do.
type filterBuilder struct {
	clauses []string
	args    []interface{}
}

func (f *filterBuilder) add(clause string, arg interface{}) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(clause, len(f.args)))
}

func (f *filterBuilder) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	out := " WHERE " + f.clauses[0]
	for _, c := range f.clauses[1:] {
		out += " AND " + c
	}
	return out
}
