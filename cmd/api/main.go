// Command api serves the VetFlow HTTP API and, when enabled, the gRPC token service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jebauza/VetFlow/internal/infra/app"
	"github.com/jebauza/VetFlow/internal/infra/config"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	checkConfig := flag.Bool("check-config", false, "validate configuration and exit")
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Fatalf("load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if *checkConfig {
		fmt.Printf("configuration ok: %s (%s) http=%s:%d grpc=%t\n",
			cfg.App.Name, cfg.App.Env, cfg.App.Host, cfg.App.Port, cfg.GRPC.Enabled)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Printf("vetflow api stopped: %v", err)
		os.Exit(1)
	}
}

// loadEnvFile tolerates a missing file so containers can rely on real environment variables.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
