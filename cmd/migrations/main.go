package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/pollsite/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pollsite/internal/config"
)

// Usage: migrations <name> [flags]
//
// "up" applies every up migration; any other name runs the single migration
// file ending in <name>.sql, e.g. "create_sessions.down".
func main() {
	if len(os.Args) < 2 {
		log.Fatal("a migration name is required.")
	}
	migrationName := os.Args[1]

	cfg, err := config.LoadDatabase(os.Args[2:])
	if err != nil {
		log.Fatal(err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	if migrationName == "up" {
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal(err)
		}
		fmt.Println("Migrations applied successfully.")
		return
	}

	fileContent, err := postgres.MigrationContent(migrationName)
	if err != nil {
		logger.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, string(fileContent)); err != nil {
		logger.Fatalf("Failed to execute SQL file: %v", err)
	}

	fmt.Println("Migration file executed successfully.")
}
