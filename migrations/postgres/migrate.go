package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/jmoiron/sqlx"
)

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Files returns the migration files with the given suffix, sorted by name
func Files(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// version is the file name without the _up.sql suffix
func version(file string) string {
	return strings.TrimSuffix(file, "_up.sql")
}

// Up applies every pending *_up.sql file in order, each in its own
// transaction, and returns the versions it applied.
func Up(ctx context.Context, db *sqlx.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var done []string
	if err := db.SelectContext(ctx, &done, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, v := range done {
		applied[v] = true
	}

	files, err := Files(FS, "_up.sql")
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, f := range files {
		v := version(f)
		if applied[v] {
			continue
		}
		body, err := fs.ReadFile(FS, f)
		if err != nil {
			return ran, err
		}
		if err := apply(ctx, db, v, string(body)); err != nil {
			return ran, fmt.Errorf("exec %s: %w", f, err)
		}
		logx.WithField("version", v).Info("migration applied")
		ran = append(ran, v)
	}
	return ran, nil
}

func apply(ctx context.Context, db *sqlx.DB, v, body string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
		return err
	}
	return tx.Commit()
}
