package database

import (
	"context"
	_ "embed"
	"fmt"
)

// Schema is the DDL for the store, carry and price tables. Every statement
// is idempotent.
//
//go:embed schema.sql
var Schema string

// Migrate applies Schema.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
