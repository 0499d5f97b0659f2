package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/pagination"
)

func TestRoleCreateSyncsPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.store.addPermission("staff.list")
	edit := f.store.addPermission("staff.edit")

	role, err := f.rolesSvc.Create(ctx, RoleInput{Name: " vet ", PermissionIDs: []string{list.ID, edit.ID, list.ID}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if role.Name != "vet" || len(role.Permissions) != 2 {
		t.Fatalf("unexpected role %+v", role)
	}
	if role.Permissions[0].Name != "staff.edit" {
		t.Fatalf("permissions should be sorted by name, got %+v", role.Permissions)
	}
	if len(f.events.permissions) != 1 || f.events.permissions[0].OwnerType != domain.OwnerRole {
		t.Fatalf("expected one role permission event, got %+v", f.events.permissions)
	}
}

func TestRoleCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.addRole("vet")

	_, err := f.rolesSvc.Create(ctx, RoleInput{Name: "vet"})
	requireFields(t, err, "name")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate name should match ErrConflict, got %v", err)
	}

	_, err = f.rolesSvc.Create(ctx, RoleInput{})
	requireFields(t, err, "name")

	_, err = f.rolesSvc.Create(ctx, RoleInput{Name: "nurse", PermissionIDs: []string{ids.NewUUID()}})
	requireFields(t, err, "permission_ids.0")
	roles, _ := f.rolesSvc.List(ctx, "nurse")
	if len(roles) != 0 {
		t.Fatalf("role must not be created when permissions are unknown")
	}
}

func TestRoleUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.store.addPermission("staff.list")
	edit := f.store.addPermission("staff.edit")

	role, err := f.rolesSvc.Create(ctx, RoleInput{Name: "vet", PermissionIDs: []string{list.ID}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	renamed, err := f.rolesSvc.Update(ctx, role.ID, RoleInput{Name: "veterinarian"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if renamed.Name != "veterinarian" || len(renamed.Permissions) != 1 {
		t.Fatalf("rename must keep permissions, got %+v", renamed)
	}

	synced, err := f.rolesSvc.Update(ctx, role.ID, RoleInput{Name: "veterinarian", PermissionIDs: []string{edit.ID}})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if len(synced.Permissions) != 1 || synced.Permissions[0].ID != edit.ID {
		t.Fatalf("expected permissions to be replaced, got %+v", synced.Permissions)
	}

	if _, err := f.rolesSvc.Update(ctx, ids.NewUUID(), RoleInput{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleDeleteKeepsPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.store.addPermission("staff.list")
	user := f.seedUser(t, "vet@vetflow.test", "Vet", "One")

	role, err := f.rolesSvc.Create(ctx, RoleInput{Name: "vet", PermissionIDs: []string{list.ID}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	f.store.link(f.store.userRoles, user.ID, role.ID)

	if err := f.rolesSvc.Delete(ctx, role.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := f.rolesSvc.Get(ctx, role.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := f.store.linked(f.store.userRoles, user.ID); len(got) != 0 {
		t.Fatalf("user role links should be removed, got %v", got)
	}
	if _, err := f.permissions.Get(ctx, list.ID); err != nil {
		t.Fatalf("permission must survive role deletion: %v", err)
	}
	if err := f.rolesSvc.Delete(ctx, role.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRoleListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"nurse", "Admin", "reception"} {
		f.store.addRole(name)
	}

	all, err := f.rolesSvc.List(ctx, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Admin" || all[0].Permissions == nil {
		t.Fatalf("unexpected roles %+v", all)
	}

	page, err := f.rolesSvc.ListPage(ctx, "e", pagination.PageRequest{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}
	if page.Meta.Total != 2 {
		t.Fatalf("expected 2 matches for 'e', got %+v", page.Meta)
	}

	offset, err := f.rolesSvc.ListOffset(ctx, "", pagination.OffsetRequest{Offset: 1, Limit: 5})
	if err != nil {
		t.Fatalf("ListOffset returned error: %v", err)
	}
	if offset.Meta.Total != 3 || offset.Meta.Offset != 1 || len(offset.Items) != 2 {
		t.Fatalf("unexpected offset window %+v", offset.Meta)
	}
	if offset.Items[0].Name != "nurse" || offset.Items[1].Name != "reception" || offset.Items[0].Permissions == nil {
		t.Fatalf("offset window must follow name order, got %+v", offset.Items)
	}

	query, err := f.pages.NormalizeCursor(CursorScopeRoles, pagination.CursorRequest{PerPage: 2}, true)
	if err != nil {
		t.Fatalf("NormalizeCursor returned error: %v", err)
	}
	window, err := f.rolesSvc.ListCursor(ctx, "", query)
	if err != nil {
		t.Fatalf("ListCursor returned error: %v", err)
	}
	if len(window.Items) != 2 || window.Meta.NextCursor == nil {
		t.Fatalf("unexpected cursor window %+v", window.Meta)
	}
}

func TestPermissionServiceList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.addPermission("staff.list")
	f.store.addPermission("role.list")

	permissions, err := f.permissions.List(ctx, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := domain.PermissionNames(permissions); len(got) != 2 || got[0] != "role.list" {
		t.Fatalf("unexpected permissions %v", got)
	}
	if _, err := f.permissions.Get(ctx, ids.NewUUID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
