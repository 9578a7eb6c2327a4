package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsersAndContacts, downCreateUsersAndContacts)
}

func upCreateUsersAndContacts(ctx context.Context, tx *sql.Tx) error {
	users := `
	CREATE TABLE users (
	  id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  username VARCHAR(50),
	  email VARCHAR(250) NOT NULL UNIQUE,
	  password VARCHAR(255) NOT NULL,
	  avatar VARCHAR(255),
	  refresh_token VARCHAR(512),
	  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := tx.ExecContext(ctx, users); err != nil {
		return err
	}

	contacts := `
	CREATE TABLE contacts (
	  id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  name VARCHAR(50) NOT NULL,
	  sure_name VARCHAR(50) NOT NULL,
	  email VARCHAR(250) NOT NULL UNIQUE,
	  phone_number VARCHAR(20) NOT NULL UNIQUE,
	  birthday VARCHAR(50) NOT NULL DEFAULT '',
	  additional_data VARCHAR(500) NOT NULL DEFAULT '',
	  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := tx.ExecContext(ctx, contacts)
	return err
}

func downCreateUsersAndContacts(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS contacts;`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS users;`)
	return err
}
