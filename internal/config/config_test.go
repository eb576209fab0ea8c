package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DRIVER", "API_ADDR", "REDIS_URL", "ARCHIVE_USE_SSL", "SHUTDOWN_GRACE_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("DatabaseDriver = %q", cfg.DatabaseDriver)
	}
	if cfg.Addr != ":8787" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RedisURL != "" || cfg.Archive.Enabled() {
		t.Errorf("expected optional sinks disabled, got %+v", cfg)
	}
	if cfg.ShutdownGrace != 10*time.Second {
		t.Errorf("ShutdownGrace = %v", cfg.ShutdownGrace)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ARCHIVE_ENDPOINT", "localhost:9000")
	t.Setenv("ARCHIVE_USE_SSL", "true")
	t.Setenv("SHUTDOWN_GRACE_SECONDS", "3")

	cfg := Load()
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q", cfg.DatabaseDriver)
	}
	if !cfg.Archive.Enabled() || !cfg.Archive.UseSSL {
		t.Errorf("unexpected archive config %+v", cfg.Archive)
	}
	if cfg.ShutdownGrace != 3*time.Second {
		t.Errorf("ShutdownGrace = %v", cfg.ShutdownGrace)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SHUTDOWN_GRACE_SECONDS", "soon")
	t.Setenv("ARCHIVE_USE_SSL", "maybe")
	cfg := Load()
	if cfg.ShutdownGrace != 10*time.Second || cfg.Archive.UseSSL {
		t.Errorf("expected fallbacks, got %v %v", cfg.ShutdownGrace, cfg.Archive.UseSSL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("REPORT_PATH=/tmp/from-dotenv.json\nLOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("REPORT_PATH", "")
	os.Unsetenv("REPORT_PATH")
	t.Setenv("LOG_LEVEL", "warn")

	if err := LoadDotEnv(file, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg := Load()
	if cfg.ReportPath != "/tmp/from-dotenv.json" {
		t.Errorf("ReportPath = %q", cfg.ReportPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected existing LOG_LEVEL to win, got %q", cfg.LogLevel)
	}
}
