package main

// Apply or inspect the request journal schema:
//   go run ./cmd/migrate [-timeout 2m] [up|down|status|version]

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dataghost-gateway/internal/shared/config"
	"dataghost-gateway/internal/shared/storage/db"
	"dataghost-gateway/internal/shared/telemetry"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, config.Load(), command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"command": command})
}

func run(ctx context.Context, cfg config.Config, command string) error {
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return db.Migrate(ctx, sqlDB, command)
}
