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
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

// nameKeyset orders a table aliased as alias by LOWER(name), id. It matches domain.Role.SortKey.
func nameKeyset(alias string) keyset {
	return keyset{
		order: []string{"LOWER(" + alias + ".name)", alias + ".id"},
		tuple: "(LOWER(" + alias + ".name), " + alias + ".id)",
		bound: "(LOWER(?::text), ?::uuid)",
		size:  2,
	}
}

// RoleRepository implements role persistence operations.
type RoleRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(db pgExecutor) *RoleRepository {
	return &RoleRepository{db: db, builder: newBuilder()}
}

// Create inserts a new role.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Insert("vetflow.roles").
		Columns("id", "name", "created_at").
		Values(role.ID, role.Name, role.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert role: %w", mapWriteError(err))
	}
	return nil
}

// Rename changes the name of an existing role.
func (r *RoleRepository) Rename(ctx context.Context, id string, name string) error {
	stmt, args, err := r.builder.Update("vetflow.roles").
		Set("name", name).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	res, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", mapWriteError(err))
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a role by ID (cascades to user_roles and role_permissions via FK).
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("vetflow.roles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	res, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"r.id": id}, "by id")
}

// GetByName retrieves a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"r.name": name}, "by name")
}

func (r *RoleRepository) getOne(ctx context.Context, pred squirrel.Sqlizer, label string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select("r.id", "r.name", "r.created_at").
		From("vetflow.roles r").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role %s sql: %w", label, err)
	}

	var role domain.Role
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role %s: %w", label, err)
	}
	return &role, nil
}

// List retrieves every role matching search sorted by name.
func (r *RoleRepository) List(ctx context.Context, search string) ([]domain.Role, error) {
	stmt, args, err := r.filtered(search).OrderBy(nameKeyset("r").order...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}
	return r.queryRoles(ctx, executor(ctx, r.db), stmt, args)
}

// SearchPage returns one numbered page of roles and the filtered total.
func (r *RoleRepository) SearchPage(ctx context.Context, search string, req pagination.PageRequest) ([]domain.Role, int64, error) {
	return r.searchWindow(ctx, search, req.Offset(), req.PerPage)
}

// SearchOffset returns an offset window of roles and the filtered total.
func (r *RoleRepository) SearchOffset(ctx context.Context, search string, req pagination.OffsetRequest) ([]domain.Role, int64, error) {
	return r.searchWindow(ctx, search, req.Offset, req.Limit)
}

func (r *RoleRepository) searchWindow(ctx context.Context, search string, offset, limit int) ([]domain.Role, int64, error) {
	exec := executor(ctx, r.db)
	filtered := r.filtered(search)

	total, err := countFiltered(ctx, exec, r.builder, filtered)
	if err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}
	if total == 0 {
		return []domain.Role{}, 0, nil
	}

	stmt, args, err := filtered.
		OrderBy(nameKeyset("r").order...).
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build search roles sql: %w", err)
	}

	roles, err := r.queryRoles(ctx, exec, stmt, args)
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// SearchCursor returns up to PerPage+1 roles beyond the cursor, in fetch order.
func (r *RoleRepository) SearchCursor(ctx context.Context, search string, query pagination.CursorQuery) ([]domain.Role, error) {
	windowed, err := nameKeyset("r").apply(r.filtered(search), query)
	if err != nil {
		return nil, err
	}

	stmt, args, err := windowed.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cursor roles sql: %w", err)
	}
	return r.queryRoles(ctx, executor(ctx, r.db), stmt, args)
}

// MissingIDs returns the ids that do not name a role.
func (r *RoleRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, executor(ctx, r.db), r.builder, "vetflow.roles", nil, ids)
}

func (r *RoleRepository) filtered(search string) squirrel.SelectBuilder {
	query := r.builder.Select("r.id", "r.name", "r.created_at").From("vetflow.roles r")
	if term := strings.TrimSpace(search); term != "" {
		query = query.Where(searchAny(term, "r.name"))
	}
	return query
}

func (r *RoleRepository) queryRoles(ctx context.Context, exec pgExecutor, stmt string, args []any) ([]domain.Role, error) {
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
