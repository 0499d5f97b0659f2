package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
)

func TestAssignmentRepository_SyncUserRolesRunsInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM vetflow\.user_roles WHERE user_id = \$1 AND role_id NOT IN \(\$2,\$3\)`).
		WithArgs("user-1", "role-a", "role-b").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO vetflow\.user_roles \(user_id,role_id\) VALUES \(\$1,\$2\),\(\$3,\$4\) ON CONFLICT DO NOTHING`).
		WithArgs("user-1", "role-a", "user-1", "role-b").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.SyncUserRoles(context.Background(), "user-1", []string{"role-a", "role-b"}); err != nil {
		t.Fatalf("SyncUserRoles returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentRepository_SyncWithEmptySetDetachesEverything(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM vetflow\.role_permissions WHERE role_id = \$1$`).
		WithArgs("role-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectCommit()

	if err := repo.SyncRolePermissions(context.Background(), "role-1", nil); err != nil {
		t.Fatalf("SyncRolePermissions returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentRepository_SyncRollsBackOnInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)
	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM vetflow\.user_permissions`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO vetflow\.user_permissions`).
		WillReturnError(boom)
	mock.ExpectRollback()

	err = repo.SyncUserPermissions(context.Background(), "user-1", []string{"perm-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentRepository_AssignIsAdditive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)

	mock.ExpectExec(`INSERT INTO vetflow\.role_permissions \(role_id,permission_id\) VALUES \(\$1,\$2\) ON CONFLICT DO NOTHING`).
		WithArgs("role-1", "perm-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.AssignRolePermissions(context.Background(), "role-1", []string{"perm-1"}); err != nil {
		t.Fatalf("AssignRolePermissions returned error: %v", err)
	}
	if err := repo.AssignUserRoles(context.Background(), "user-1", nil); err != nil {
		t.Fatalf("AssignUserRoles with no ids returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentRepository_RolesByUsersGroupsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT ur\.user_id, r\.id, r\.name, r\.created_at FROM vetflow\.roles r JOIN vetflow\.user_roles ur ON ur\.role_id = r\.id WHERE ur\.user_id IN \(\$1,\$2\) ORDER BY LOWER\(r\.name\), r\.id`).
		WithArgs("user-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "id", "name", "created_at"}).
			AddRow("user-1", "role-a", "Admin", now).
			AddRow("user-1", "role-b", "Vet", now).
			AddRow("user-2", "role-b", "Vet", now))

	roles, err := repo.RolesByUsers(context.Background(), []string{"user-1", "user-2"})
	if err != nil {
		t.Fatalf("RolesByUsers returned error: %v", err)
	}
	if len(roles["user-1"]) != 2 || len(roles["user-2"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentRepository_PermissionsByRolesGroupsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAssignmentRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM vetflow\.permissions p JOIN vetflow\.role_permissions l ON l\.permission_id = p\.id WHERE l\.role_id IN \(\$1\)`).
		WithArgs("role-a").
		WillReturnRows(pgxmock.NewRows([]string{"role_id", "id", "name", "created_at"}).
			AddRow("role-a", "perm-1", "role.edit", now))

	permissions, err := repo.PermissionsByRoles(context.Background(), []string{"role-a"})
	if err != nil {
		t.Fatalf("PermissionsByRoles returned error: %v", err)
	}
	if len(permissions["role-a"]) != 1 || permissions["role-a"][0].Name != "role.edit" {
		t.Fatalf("unexpected permissions: %+v", permissions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactor_NestedCallsJoinOuterTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tx := NewTransactor(mock)
	repo := NewAssignmentRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM vetflow\.user_roles`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO vetflow\.user_roles`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO vetflow\.user_permissions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.SyncUserRoles(ctx, "user-1", []string{"role-a"}); err != nil {
			return err
		}
		return repo.AssignUserPermissions(ctx, "user-1", []string{"perm-1"})
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
