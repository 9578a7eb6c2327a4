package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
	"gitlab.com/dirk.krummacker/contacts-api/internal/migrations"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go -dir=../../internal/migrations up
func main() {
	dir := flag.String("dir", "internal/migrations", "the directory holding the migration files")
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("could not read .env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	sqlDB, err := repository.CreateDatabase(cfg.Database)
	if err != nil {
		slog.Error("could not open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := migrations.Run(context.Background(), sqlDB, command, *dir); err != nil {
		slog.Error("migration failed", "command", command, "error", err)
		sqlDB.Close()
		os.Exit(1)
	}
}
