package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jebauza/VetFlow/internal/infra/config"
)

const catalogYAML = `permissions:
  - admin
  - staff.list
roles:
  - name: Admin
    permissions: [admin, staff.list]
  - name: Vet
    permissions: []
users:
  - email: vet@vetflow.local
    name: Ana
    surname: Ruiz
    password: s3cret-Passw0rd
    roles: [Vet]
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalogAppendsSuperAdmin(t *testing.T) {
	catalog, err := loadCatalog(config.SeedSettings{
		CatalogPath:        writeCatalog(t),
		SuperAdminEmail:    " root@vetflow.local ",
		SuperAdminPassword: "change-me-now",
	})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	if len(catalog.Permissions) != 2 || len(catalog.Roles) != 2 {
		t.Fatalf("unexpected catalog %+v", catalog)
	}
	if got := catalog.Roles[0].Permissions; len(got) != 2 || got[1] != "staff.list" {
		t.Fatalf("unexpected admin permissions %v", got)
	}
	if len(catalog.Users) != 2 {
		t.Fatalf("expected catalog user plus super admin, got %+v", catalog.Users)
	}
	if vet := catalog.Users[0]; vet.Surname != "Ruiz" || len(vet.Roles) != 1 || vet.SuperAdmin {
		t.Fatalf("unexpected catalog user %+v", vet)
	}
	root := catalog.Users[1]
	if root.Email != "root@vetflow.local" || !root.SuperAdmin || root.Password != "change-me-now" {
		t.Fatalf("unexpected super admin %+v", root)
	}
}

func TestLoadCatalogWithoutSuperAdmin(t *testing.T) {
	catalog, err := loadCatalog(config.SeedSettings{CatalogPath: writeCatalog(t), SuperAdminEmail: "superadmin@vetflow.local"})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(catalog.Users) != 1 {
		t.Fatalf("expected only the catalog user, got %+v", catalog.Users)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := loadCatalog(config.SeedSettings{CatalogPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}
