package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/repository"
)

// Catalog is the declarative seed data: permissions, roles and bootstrap users.
type Catalog struct {
	Permissions []string      `mapstructure:"permissions"`
	Roles       []CatalogRole `mapstructure:"roles"`
	Users       []CatalogUser `mapstructure:"users"`
}

// CatalogRole names a role and the permission names it grants.
type CatalogRole struct {
	Name        string   `mapstructure:"name"`
	Permissions []string `mapstructure:"permissions"`
}

// CatalogUser is a bootstrap account. Password is only used when the user does not exist yet.
type CatalogUser struct {
	Email       string   `mapstructure:"email"`
	Name        string   `mapstructure:"name"`
	Surname     string   `mapstructure:"surname"`
	Password    string   `mapstructure:"password"`
	SuperAdmin  bool     `mapstructure:"superadmin"`
	Roles       []string `mapstructure:"roles"`
	Permissions []string `mapstructure:"permissions"`
}

// SeedReport counts the rows created by one Apply run.
type SeedReport struct {
	PermissionsCreated int
	RolesCreated       int
	UsersCreated       int
}

// Seeder applies a Catalog idempotently.
type Seeder struct {
	users       port.UserRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
	assignments port.AssignmentRepository
	tx          port.Transactor
	hasher      port.PasswordHasher
	logger      *zap.Logger
	now         func() time.Time
}

// NewSeeder constructs a Seeder instance.
func NewSeeder(
	users port.UserRepository,
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	assignments port.AssignmentRepository,
	tx port.Transactor,
	hasher port.PasswordHasher,
	logger *zap.Logger,
) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		users:       users,
		roles:       roles,
		permissions: permissions,
		assignments: assignments,
		tx:          tx,
		hasher:      hasher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Apply upserts the catalog in a single transaction.
func (s *Seeder) Apply(ctx context.Context, catalog Catalog) (SeedReport, error) {
	var report SeedReport
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		report = SeedReport{}

		permissionIDs := make(map[string]string, len(catalog.Permissions))
		for _, name := range catalog.Permissions {
			id, created, err := s.ensurePermission(ctx, name)
			if err != nil {
				return err
			}
			permissionIDs[strings.TrimSpace(name)] = id
			if created {
				report.PermissionsCreated++
			}
		}

		roleIDs := make(map[string]string, len(catalog.Roles))
		for _, entry := range catalog.Roles {
			id, created, err := s.ensureRole(ctx, entry.Name)
			if err != nil {
				return err
			}
			granted, err := lookupNames(permissionIDs, entry.Permissions, "permission")
			if err != nil {
				return fmt.Errorf("role %q: %w", entry.Name, err)
			}
			if err := s.assignments.SyncRolePermissions(ctx, id, granted); err != nil {
				return fmt.Errorf("sync role %q permissions: %w", entry.Name, err)
			}
			roleIDs[strings.TrimSpace(entry.Name)] = id
			if created {
				report.RolesCreated++
			}
		}

		for _, entry := range catalog.Users {
			id, created, err := s.ensureUser(ctx, entry)
			if err != nil {
				return err
			}
			roles, err := lookupNames(roleIDs, entry.Roles, "role")
			if err != nil {
				return fmt.Errorf("user %q: %w", entry.Email, err)
			}
			direct, err := lookupNames(permissionIDs, entry.Permissions, "permission")
			if err != nil {
				return fmt.Errorf("user %q: %w", entry.Email, err)
			}
			if err := s.assignments.SyncUserRoles(ctx, id, roles); err != nil {
				return fmt.Errorf("sync user %q roles: %w", entry.Email, err)
			}
			if err := s.assignments.SyncUserPermissions(ctx, id, direct); err != nil {
				return fmt.Errorf("sync user %q permissions: %w", entry.Email, err)
			}
			if created {
				report.UsersCreated++
			}
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}

	s.logger.Info("catalog applied",
		zap.Int("permissions_created", report.PermissionsCreated),
		zap.Int("roles_created", report.RolesCreated),
		zap.Int("users_created", report.UsersCreated),
	)
	return report, nil
}

func (s *Seeder) ensurePermission(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, errors.New("seed: permission name is empty")
	}
	existing, err := s.permissions.GetByName(ctx, name)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", false, fmt.Errorf("load permission %q: %w", name, err)
	}

	permission := domain.Permission{ID: ids.NewUUID(), Name: name, CreatedAt: s.now()}
	if err := s.permissions.Create(ctx, permission); err != nil {
		return "", false, fmt.Errorf("create permission %q: %w", name, err)
	}
	return permission.ID, true, nil
}

func (s *Seeder) ensureRole(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, errors.New("seed: role name is empty")
	}
	existing, err := s.roles.GetByName(ctx, name)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", false, fmt.Errorf("load role %q: %w", name, err)
	}

	role := domain.Role{ID: ids.NewUUID(), Name: name, CreatedAt: s.now()}
	if err := s.roles.Create(ctx, role); err != nil {
		return "", false, fmt.Errorf("create role %q: %w", name, err)
	}
	return role.ID, true, nil
}

func (s *Seeder) ensureUser(ctx context.Context, entry CatalogUser) (string, bool, error) {
	email := strings.TrimSpace(entry.Email)
	if email == "" {
		return "", false, errors.New("seed: user email is empty")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		updated := *existing
		updated.Name = strings.TrimSpace(entry.Name)
		updated.Surname = strings.TrimSpace(entry.Surname)
		updated.IsSuperAdmin = entry.SuperAdmin
		updated.UpdatedAt = s.now()
		if err := s.users.Update(ctx, updated); err != nil {
			return "", false, fmt.Errorf("update user %q: %w", email, err)
		}
		return existing.ID, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return "", false, fmt.Errorf("load user %q: %w", email, err)
	}

	if entry.Password == "" {
		return "", false, fmt.Errorf("seed: user %q needs a password", email)
	}
	hash, err := s.hasher.Hash(entry.Password)
	if err != nil {
		return "", false, fmt.Errorf("hash password for %q: %w", email, err)
	}

	now := s.now()
	user := domain.User{
		ID:           ids.NewUUID(),
		Email:        email,
		Name:         strings.TrimSpace(entry.Name),
		Surname:      strings.TrimSpace(entry.Surname),
		PasswordHash: hash,
		IsSuperAdmin: entry.SuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", false, fmt.Errorf("create user %q: %w", email, err)
	}
	return user.ID, true, nil
}

// lookupNames maps names onto ids, failing on the first unknown name.
func lookupNames(known map[string]string, names []string, kind string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := known[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("seed: unknown %s %q", kind, name)
		}
		out = append(out, id)
	}
	return normalizeIDs(out), nil
}
