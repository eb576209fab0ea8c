package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Migration is one schema step. Version is the file stem shared by both halves, e.g. "0001_init".
type Migration struct {
	Version string
	UpPath  string
	// DownPath is empty when the step cannot be reverted.
	DownPath string
}

// LoadMigrations pairs the up and down files in dir, ordered by version. A down file without
// a matching up file is an error.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var version string
		var down bool
		switch {
		case strings.HasSuffix(name, upSuffix):
			version = strings.TrimSuffix(name, upSuffix)
		case strings.HasSuffix(name, downSuffix):
			version, down = strings.TrimSuffix(name, downSuffix), true
		default:
			continue
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if down {
			m.DownPath = filepath.Join(dir, name)
		} else {
			m.UpPath = filepath.Join(dir, name)
		}
	}

	items := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpPath == "" {
			return nil, fmt.Errorf("migration %s has no %s file", m.Version, upSuffix)
		}
		items = append(items, *m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items, nil
}

// ApplyMigrations runs every pending up step in version order, each in its own transaction.
// It returns the versions it applied.
func ApplyMigrations(ctx context.Context, db *DB, dir string) ([]string, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0)
	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		record := db.Rebind(`INSERT INTO schema_migrations(version) VALUES($1)`)
		if err := runStep(ctx, db, m.Version, m.UpPath, record); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// RevertMigrations undoes the latest steps applied migrations, newest first. steps <= 0 reverts all.
// It returns the versions it reverted.
func RevertMigrations(ctx context.Context, db *DB, dir string, steps int) ([]string, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	reverted := make([]string, 0)
	for i := len(migrations) - 1; i >= 0; i-- {
		if steps > 0 && len(reverted) == steps {
			break
		}
		m := migrations[i]
		if !done[m.Version] {
			continue
		}
		if m.DownPath == "" {
			return reverted, fmt.Errorf("migration %s has no %s file", m.Version, downSuffix)
		}
		record := db.Rebind(`DELETE FROM schema_migrations WHERE version=$1`)
		if err := runStep(ctx, db, m.Version, m.DownPath, record); err != nil {
			return reverted, err
		}
		reverted = append(reverted, m.Version)
	}
	return reverted, nil
}

// runStep executes one migration file and its bookkeeping statement atomically.
func runStep(ctx context.Context, db *DB, version, path, record string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", version, err)
	}
	if body := strings.TrimSpace(string(contents)); body != "" {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", filepath.Base(path), err)
		}
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db *DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		done[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return done, nil
}
