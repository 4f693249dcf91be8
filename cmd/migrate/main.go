// Command migrate applies the embedded goose migrations.
//
// Usage: migrate [up|down|status|version]
package main

import (
	"database/sql"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/adoralabs/dropwatch/internal/config"
	"github.com/adoralabs/dropwatch/internal/logging"
	"github.com/adoralabs/dropwatch/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("failed to set dialect", "error", err)
		os.Exit(1)
	}

	var runErr error
	switch command {
	case "up":
		runErr = goose.Up(db, ".")
	case "down":
		runErr = goose.Down(db, ".")
	case "status":
		runErr = goose.Status(db, ".")
	case "version":
		runErr = goose.Version(db, ".")
	default:
		slog.Error("unknown command", "command", command)
		os.Exit(1)
	}

	if runErr != nil {
		slog.Error("migration failed", "command", command, "error", runErr)
		os.Exit(1)
	}
}
