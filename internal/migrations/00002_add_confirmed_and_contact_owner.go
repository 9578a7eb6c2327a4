package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddConfirmedAndContactOwner, downAddConfirmedAndContactOwner)
}

func upAddConfirmedAndContactOwner(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE users ADD COLUMN confirmed BOOLEAN NOT NULL DEFAULT FALSE;`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
	ALTER TABLE contacts
	  ADD COLUMN user_id INT NULL,
	  ADD CONSTRAINT fk_contacts_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE SET NULL;
	`)
	return err
}

func downAddConfirmedAndContactOwner(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE contacts DROP FOREIGN KEY fk_contacts_user, DROP COLUMN user_id;`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `ALTER TABLE users DROP COLUMN confirmed;`)
	return err
}
