package database

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS vetflow.schema_migrations (version text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`
	migrationApplied      = `SELECT EXISTS (SELECT 1 FROM vetflow.schema_migrations WHERE version = $1)`
	recordMigration       = `INSERT INTO vetflow.schema_migrations (version) VALUES ($1)`
)

// MigrationDB is the subset of *pgxpool.Pool needed to apply migrations.
type MigrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies every *.sql file in fsys that is not yet recorded in
// vetflow.schema_migrations. Each file runs in its own transaction. It returns
// the versions applied by this call.
func Migrate(ctx context.Context, db MigrationDB, fsys fs.FS, log *zap.Logger) ([]string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	if _, err := db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+Schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	var applied []string
	for _, name := range files {
		version := strings.TrimSuffix(name, ".sql")

		var done bool
		if err := db.QueryRow(ctx, migrationApplied, version).Scan(&done); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if done {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := applyMigration(ctx, db, version, string(body)); err != nil {
			return applied, err
		}

		log.Info("migration applied", zap.String("version", version))
		applied = append(applied, version)
	}

	return applied, nil
}

func applyMigration(ctx context.Context, db MigrationDB, version, body string) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, body); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err = tx.Exec(ctx, recordMigration, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
