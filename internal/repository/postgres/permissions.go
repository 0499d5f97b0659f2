package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/repository"
)

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
type PermissionRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(db pgExecutor) *PermissionRepository {
	return &PermissionRepository{db: db, builder: newBuilder()}
}

// Create inserts a new permission row.
func (r *PermissionRepository) Create(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Insert("vetflow.permissions").
		Columns("id", "name", "created_at").
		Values(permission.ID, permission.Name, permission.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert permission sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert permission: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves a permission by id.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "by id")
}

// GetByName retrieves a permission by its unique name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name}, "by name")
}

func (r *PermissionRepository) getOne(ctx context.Context, pred squirrel.Sqlizer, label string) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select("id", "name", "created_at").
		From("vetflow.permissions").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission %s sql: %w", label, err)
	}

	var permission domain.Permission
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&permission.ID, &permission.Name, &permission.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan permission %s: %w", label, err)
	}
	return &permission, nil
}

// List returns every permission matching search sorted by name.
func (r *PermissionRepository) List(ctx context.Context, search string) ([]domain.Permission, error) {
	query := r.builder.Select("p.id", "p.name", "p.created_at").From("vetflow.permissions p")
	if term := strings.TrimSpace(search); term != "" {
		query = query.Where(searchAny(term, "p.name"))
	}

	stmt, args, err := query.OrderBy(nameKeyset("p").order...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		var permission domain.Permission
		if err := rows.Scan(&permission.ID, &permission.Name, &permission.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return permissions, nil
}

// MissingIDs returns the ids that do not name a permission.
func (r *PermissionRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, executor(ctx, r.db), r.builder, "vetflow.permissions", nil, ids)
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
