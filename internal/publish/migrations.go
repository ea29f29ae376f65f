package publish

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// applyMigrations runs every embedded migrations/NNN_name.sql file not yet
// recorded in schema_migrations, in file-name order, inside one transaction.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+migrationsTable+" (version TEXT PRIMARY KEY, applied_at TEXT)"); err != nil {
		return fmt.Errorf("create %s: %w", migrationsTable, err)
	}
	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}

	for _, name := range names {
		version := strings.TrimSuffix(path.Base(name), ".sql")
		if applied[version] {
			continue
		}
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		query, args, err := sq.Insert(migrationsTable).
			Columns("version", "applied_at").
			Values(version, sq.Expr("datetime('now')")).
			ToSql()
		if err != nil {
			return fmt.Errorf("build migration record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	query, args, err := sq.Select("version").From(migrationsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build migration query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
