package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

var userColumns = []string{
	"u.id",
	"u.email",
	"u.name",
	"u.surname",
	"u.password_hash",
	"u.avatar",
	"u.phone",
	"u.type_document",
	"u.n_document",
	"u.birth_date",
	"u.designation",
	"u.gender",
	"u.is_superadmin",
	"u.created_at",
	"u.updated_at",
	"u.deleted_at",
}

// userKeyset matches domain.User.SortKey.
var userKeyset = keyset{
	order: []string{"LOWER(CONCAT(u.name, u.surname))", "u.id"},
	tuple: "(LOWER(CONCAT(u.name, u.surname)), u.id)",
	bound: "(LOWER(CONCAT(?::text, ?::text)), ?::uuid)",
	size:  3,
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db pgExecutor) *UserRepository {
	return &UserRepository{db: db, builder: newBuilder()}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("vetflow.users").
		Columns(
			"id",
			"email",
			"name",
			"surname",
			"password_hash",
			"avatar",
			"phone",
			"type_document",
			"n_document",
			"birth_date",
			"designation",
			"gender",
			"is_superadmin",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.Email,
			user.Name,
			user.Surname,
			user.PasswordHash,
			user.Avatar,
			user.Phone,
			documentValue(user.TypeDocument),
			user.NDocument,
			user.BirthDate,
			user.Designation,
			genderValue(user.Gender),
			user.IsSuperAdmin,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", mapWriteError(err))
	}
	return nil
}

// Update replaces the mutable columns of an active user.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Update("vetflow.users").
		Set("email", user.Email).
		Set("name", user.Name).
		Set("surname", user.Surname).
		Set("password_hash", user.PasswordHash).
		Set("avatar", user.Avatar).
		Set("phone", user.Phone).
		Set("type_document", documentValue(user.TypeDocument)).
		Set("n_document", user.NDocument).
		Set("birth_date", user.BirthDate).
		Set("designation", user.Designation).
		Set("gender", genderValue(user.Gender)).
		Set("is_superadmin", user.IsSuperAdmin).
		Set("updated_at", user.UpdatedAt).
		Where(squirrel.Eq{"id": user.ID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	res, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", mapWriteError(err))
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at on an active user.
func (r *UserRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("vetflow.users").
		Set("deleted_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete user sql: %w", err)
	}

	res, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID fetches an active user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.And{squirrel.Eq{"u.id": id}, squirrel.Expr("u.deleted_at IS NULL")}, "by id")
}

// GetByIDWithDeleted fetches a user by identifier including soft deleted rows.
func (r *UserRepository) GetByIDWithDeleted(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"u.id": id}, "with deleted")
}

// GetByEmail fetches an active user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.And{squirrel.Eq{"u.email": email}, squirrel.Expr("u.deleted_at IS NULL")}, "by email")
}

func (r *UserRepository) getOne(ctx context.Context, pred squirrel.Sqlizer, label string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("vetflow.users u").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user %s sql: %w", label, err)
	}

	user, err := scanUser(executor(ctx, r.db).QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user %s: %w", label, err)
	}
	return user, nil
}

// EmailTaken reports whether another user, deleted or not, already uses email case-insensitively.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID string) (bool, error) {
	query := r.builder.Select("1").
		From("vetflow.users").
		Where(squirrel.Expr("LOWER(email) = LOWER(?)", strings.TrimSpace(email))).
		Limit(1)
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	stmt, args, err := query.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build email taken sql: %w", err)
	}

	var taken bool
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&taken); err != nil {
		return false, fmt.Errorf("query email taken: %w", err)
	}
	return taken, nil
}

// SearchPage returns one numbered page of listable users and the filtered total.
func (r *UserRepository) SearchPage(ctx context.Context, filter port.UserFilter, req pagination.PageRequest) ([]domain.User, int64, error) {
	return r.searchWindow(ctx, filter, req.Offset(), req.PerPage)
}

// SearchOffset returns an offset window of listable users and the filtered total.
func (r *UserRepository) SearchOffset(ctx context.Context, filter port.UserFilter, req pagination.OffsetRequest) ([]domain.User, int64, error) {
	return r.searchWindow(ctx, filter, req.Offset, req.Limit)
}

func (r *UserRepository) searchWindow(ctx context.Context, filter port.UserFilter, offset, limit int) ([]domain.User, int64, error) {
	exec := executor(ctx, r.db)
	filtered := r.filtered(filter)

	total, err := countFiltered(ctx, exec, r.builder, filtered)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}

	stmt, args, err := filtered.
		OrderBy(userKeyset.order...).
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build search users sql: %w", err)
	}

	users, err := r.queryUsers(ctx, exec, stmt, args)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SearchCursor returns up to PerPage+1 listable users beyond the cursor, in fetch order.
func (r *UserRepository) SearchCursor(ctx context.Context, filter port.UserFilter, query pagination.CursorQuery) ([]domain.User, error) {
	windowed, err := userKeyset.apply(r.filtered(filter), query)
	if err != nil {
		return nil, err
	}

	stmt, args, err := windowed.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cursor users sql: %w", err)
	}
	return r.queryUsers(ctx, executor(ctx, r.db), stmt, args)
}

// MissingIDs returns the ids that do not belong to an active user.
func (r *UserRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, executor(ctx, r.db), r.builder, "vetflow.users", squirrel.Expr("deleted_at IS NULL"), ids)
}

func (r *UserRepository) filtered(filter port.UserFilter) squirrel.SelectBuilder {
	query := r.builder.Select(userColumns...).
		From("vetflow.users u").
		Where("u.deleted_at IS NULL").
		Where("u.is_superadmin = FALSE")

	if term := strings.TrimSpace(filter.Search); term != "" {
		query = query.Where(searchAny(term, "u.name", "u.surname", "u.email", "u.n_document"))
	}
	return query
}

func (r *UserRepository) queryUsers(ctx context.Context, exec pgExecutor, stmt string, args []any) ([]domain.User, error) {
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		typeDocument *string
		gender       *string
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Surname,
		&user.PasswordHash,
		&user.Avatar,
		&user.Phone,
		&typeDocument,
		&user.NDocument,
		&user.BirthDate,
		&user.Designation,
		&gender,
		&user.IsSuperAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	); err != nil {
		return nil, err
	}

	if typeDocument != nil {
		value := domain.DocumentType(*typeDocument)
		user.TypeDocument = &value
	}
	if gender != nil {
		value := domain.Gender(*gender)
		user.Gender = &value
	}
	return &user, nil
}

func documentValue(value *domain.DocumentType) any {
	if value == nil {
		return nil
	}
	return string(*value)
}

func genderValue(value *domain.Gender) any {
	if value == nil {
		return nil
	}
	return string(*value)
}

var _ port.UserRepository = (*UserRepository)(nil)
