package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed sql/0001_schema.sql
var schemaSQL string

// ErrSchema marks an unrecoverable failure to create or verify the storage
// schema. Fatal at startup; the server must not bind its port without it.
var ErrSchema = errors.New("schema unavailable")

// EnsureSchema creates the readings and stats tables if absent. Idempotent.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}
