package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies embedded migrations that are not yet recorded in
// schema_migrations, in file-name order, each inside its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return errors.Wrap(err, "creating schema_migrations")
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		return errors.Wrap(err, "listing applied migrations")
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, path := range names {
		name := strings.TrimPrefix(path, "migrations/")
		if done[name] {
			continue
		}
		body, err := migrationFiles.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		if err := applyMigration(ctx, db, name, string(body)); err != nil {
			return err
		}
		log.WithField("migration", name).Info("migration applied")
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, name, body string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "beginning %s", name)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "applying %s", name)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return errors.Wrapf(err, "recording %s", name)
	}
	return errors.Wrapf(tx.Commit(), "committing %s", name)
}

// splitStatements splits a migration on semicolons that end a line.
// Migrations must not contain function bodies.
func splitStatements(body string) []string {
	var out []string
	for _, part := range strings.Split(body, ";\n") {
		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if stmt == "" || isComment(stmt) {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func isComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
