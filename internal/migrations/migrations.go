// Package migrations holds the versioned database schema. Importing it registers every migration
// with goose.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Run applies command to db. Valid commands are "up", "down" and "status". dir is the directory
// holding the source files of this package; goose reads the migration versions from their names.
func Run(ctx context.Context, db *sql.DB, command, dir string) error {
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	switch command {
	case "up":
		return goose.UpContext(ctx, db, dir)
	case "down":
		return goose.DownContext(ctx, db, dir)
	case "status":
		return goose.StatusContext(ctx, db, dir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}
