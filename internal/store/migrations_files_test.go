package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrations, err := LoadMigrations(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no migrations discovered")
	}

	pattern := regexp.MustCompile(`^\d+_[a-z0-9_]+$`)
	for _, m := range migrations {
		if !pattern.MatchString(m.Version) {
			t.Errorf("version %q must look like NNNN_name", m.Version)
		}
		if m.DownPath == "" {
			t.Errorf("version %s must include a down file", m.Version)
		}
	}
}

func TestLoadMigrationsPairsAndOrders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.down.sql", "0001_a.up.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	migrations, err := LoadMigrations(dir)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != "0001_a" || migrations[1].Version != "0002_b" {
		t.Fatalf("unexpected migrations %+v", migrations)
	}
	if migrations[0].DownPath == "" || migrations[1].DownPath != "" {
		t.Fatalf("unexpected down paths %+v", migrations)
	}

	if err := os.WriteFile(filepath.Join(dir, "0003_c.down.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write down file: %v", err)
	}
	if _, err := LoadMigrations(dir); err == nil || !strings.Contains(err.Error(), "0003_c") {
		t.Fatalf("expected error for orphan down file, got %v", err)
	}
}

func TestInitMigrationCreatesEveryTable(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	tables := []string{
		"member",
		"party",
		"parliamentary_group",
		"member_party",
		"member_group",
		"bill",
		"bill_sponsor",
		"bill_supporter",
		"bill_sponsor_group",
		"bill_votes",
		"bill_vote_result_by_group",
		"bill_vote_result_by_member",
	}
	for _, table := range tables {
		if !strings.Contains(sqlText, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("expected migration to create table %q", table)
		}
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver Driver
		query  string
		want   string
	}{
		{DriverPostgres, `SELECT * FROM t WHERE a=$1 AND b=$2`, `SELECT * FROM t WHERE a=$1 AND b=$2`},
		{DriverSQLite, `SELECT * FROM t WHERE a=$1 AND b=$12`, `SELECT * FROM t WHERE a=? AND b=?`},
		{DriverSQLite, `SELECT '$' FROM t`, `SELECT '$' FROM t`},
		{DriverSQLite, `VALUES($1)`, `VALUES(?)`},
	}
	for _, tt := range tests {
		db := &DB{Driver: tt.driver}
		if got := db.Rebind(tt.query); got != tt.want {
			t.Errorf("Rebind(%q) on %s = %q, want %q", tt.query, tt.driver, got, tt.want)
		}
	}
}
