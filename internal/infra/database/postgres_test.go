package database

import (
	"testing"
	"time"

	"github.com/jebauza/VetFlow/internal/infra/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.PostgresSettings{
		Host:     "db",
		Port:     5432,
		User:     "vet",
		Password: "p@ss/word",
		Database: "vetflow",
		SSLMode:  "disable",
	})

	want := "postgres://vet:p%40ss%2Fword@db:5432/vetflow?sslmode=disable"
	if dsn != want {
		t.Fatalf("unexpected dsn %q, want %q", dsn, want)
	}
}

func TestPoolConfigAppliesLimitsAndSessionParams(t *testing.T) {
	pc, err := PoolConfig(config.PostgresSettings{
		Host:             "db",
		Port:             5432,
		User:             "vet",
		Password:         "secret",
		Database:         "vetflow",
		SSLMode:          "disable",
		MaxConns:         20,
		MinConns:         4,
		MaxConnLifetime:  time.Hour,
		StatementTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("PoolConfig returned error: %v", err)
	}
	if pc.MaxConns != 20 || pc.MinConns != 4 || pc.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected pool limits: max=%d min=%d lifetime=%s", pc.MaxConns, pc.MinConns, pc.MaxConnLifetime)
	}

	params := pc.ConnConfig.RuntimeParams
	if params["search_path"] != "vetflow,public" || params["application_name"] != "vetflow" {
		t.Fatalf("unexpected runtime params %v", params)
	}
	if params["statement_timeout"] != "5000" {
		t.Fatalf("expected statement_timeout in ms, got %q", params["statement_timeout"])
	}
}

func TestPoolConfigWithoutStatementTimeout(t *testing.T) {
	pc, err := PoolConfig(config.PostgresSettings{Host: "db", Port: 5432, Database: "vetflow", SSLMode: "disable"})
	if err != nil {
		t.Fatalf("PoolConfig returned error: %v", err)
	}
	if _, ok := pc.ConnConfig.RuntimeParams["statement_timeout"]; ok {
		t.Fatalf("statement_timeout must be unset when not configured")
	}
}
