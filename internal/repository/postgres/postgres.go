package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/repository"
)

const uniqueViolation = "23505"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the connection surface shared by *pgxpool.Pool and pgxmock pools.
type DB interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Transactor implements port.Transactor by stashing the open pgx.Tx on the context.
type Transactor struct {
	db DB
}

// NewTransactor constructs a Transactor over the provided pool.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn inside a transaction, joining one already carried by ctx.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// executor returns the transaction carried by ctx or falls back to the pool.
func executor(ctx context.Context, db pgExecutor) pgExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// mapWriteError translates constraint violations into repository errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &repository.ConflictError{Constraint: pgErr.ConstraintName}
	}
	return err
}

// missingIDs returns the ids absent from table, preserving input order.
func missingIDs(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, table string, extra squirrel.Sqlizer, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := builder.Select("id::text").
		From(table).
		Where(squirrel.Expr("id::text = ANY(?)", ids))
	if extra != nil {
		query = query.Where(extra)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existing ids sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing ids: %w", err)
	}

	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

var _ port.Transactor = (*Transactor)(nil)
