package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/config"
	"github.com/jebauza/VetFlow/internal/infra/database"
	"github.com/jebauza/VetFlow/internal/infra/logger"
	"github.com/jebauza/VetFlow/internal/infra/security"
	"github.com/jebauza/VetFlow/internal/repository/postgres"
	"github.com/jebauza/VetFlow/internal/usecase"
	"github.com/jebauza/VetFlow/migrations"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply schema migrations and skip the catalog")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *migrateOnly); err != nil {
		log.Printf("seed failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, migrateOnly bool) error {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, cfg.App.Name+"-seed")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := database.Migrate(ctx, pool, migrations.Files, log)
	if err != nil {
		return err
	}
	log.Info("schema up to date", zap.Int("applied", len(applied)))
	if migrateOnly {
		return nil
	}

	catalog, err := loadCatalog(cfg.Seed)
	if err != nil {
		return err
	}

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}

	repos := postgres.NewRepositories(pool)
	seeder := usecase.NewSeeder(repos.Users, repos.Roles, repos.Permissions, repos.Assignments, repos.Transactor, hasher, log)

	report, err := seeder.Apply(ctx, catalog)
	if err != nil {
		return err
	}

	log.Info("catalog applied",
		zap.Int("permissions_created", report.PermissionsCreated),
		zap.Int("roles_created", report.RolesCreated),
		zap.Int("users_created", report.UsersCreated),
	)
	return nil
}

// loadCatalog reads the catalog file and appends the configured super admin account
// when both its email and password are set.
func loadCatalog(settings config.SeedSettings) (usecase.Catalog, error) {
	v := viper.New()
	v.SetConfigFile(settings.CatalogPath)
	if err := v.ReadInConfig(); err != nil {
		return usecase.Catalog{}, fmt.Errorf("read catalog %s: %w", settings.CatalogPath, err)
	}

	var catalog usecase.Catalog
	if err := v.Unmarshal(&catalog); err != nil {
		return usecase.Catalog{}, fmt.Errorf("decode catalog %s: %w", settings.CatalogPath, err)
	}

	email := strings.TrimSpace(settings.SuperAdminEmail)
	if email == "" || settings.SuperAdminPassword == "" {
		return catalog, nil
	}
	catalog.Users = append(catalog.Users, usecase.CatalogUser{
		Email:      email,
		Name:       email,
		Surname:    email,
		Password:   settings.SuperAdminPassword,
		SuperAdmin: true,
	})
	return catalog, nil
}
