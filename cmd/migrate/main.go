// ==============================================================================
// DATABASE MIGRATION - cmd/migrate/main.go
// ==============================================================================
package main

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"bgref/pkg/config"
	"bgref/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithMode("bgref-migrate", cfg.LogMode)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required", nil)
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|steps N|version|force VERSION]", nil)
	}

	command := os.Args[1]
	source := "file://" + getEnv("MIGRATIONS_PATH", "migrations")

	// Open database connection
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migration driver", map[string]interface{}{"error": err.Error()})
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migrations applied", nil)

	case "down":
		if err := m.Down(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Migration rollback failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migrations rolled back", nil)

	case "steps":
		n := intArg(log, "steps")
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration steps failed", map[string]interface{}{"steps": n, "error": err.Error()})
		}
		log.Info("Migration steps applied", map[string]interface{}{"steps": n})

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if stderrors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migrations applied")
				return
			}
			log.Fatal("Failed to get version", map[string]interface{}{"error": err.Error()})
		}
		fmt.Printf("Current version: %d (dirty: %t)\n", version, dirty)

	case "force":
		version := intArg(log, "force")
		if err := m.Force(version); err != nil {
			log.Fatal("Force migration failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Forced migration version", map[string]interface{}{"version": version})

	default:
		log.Fatal("Unknown command", map[string]interface{}{"command": command})
	}
}

func intArg(log logger.Logger, command string) int {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate "+command+" N", nil)
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatal("Argument must be an integer", map[string]interface{}{"value": os.Args[2]})
	}
	return n
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
