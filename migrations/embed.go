// Package migrations embeds the schema migrations applied by cmd/migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
)

//go:embed *.sql
var FS embed.FS

// VersionTable is the bookkeeping table golang-migrate maintains.
const VersionTable = "schema_migrations"

// CurrentVersion reports the applied migration version and dirty flag.
// It returns version 0 when nothing has been applied yet.
func CurrentVersion(ctx context.Context, db *sql.DB) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM "+VersionTable+" LIMIT 1").Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrations: read version: %w", err)
	}
	return uint(version), dirty, nil
}
