package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dietscore/internal/archive"
	"dietscore/internal/cache"
	"dietscore/internal/history"
	"dietscore/internal/scoring"
	"dietscore/internal/search"
)

// Publisher persists one computed report. Publishers never modify the report.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, report scoring.Report, data []byte, digest string) error
}

// FilePublisher writes the encoded report to a path atomically.
type FilePublisher struct {
	Path string
}

func (p FilePublisher) Name() string { return "file" }

func (p FilePublisher) Publish(_ context.Context, _ scoring.Report, data []byte, _ string) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

type cachePublisher struct {
	store *cache.RedisStore
}

func (p cachePublisher) Name() string { return "redis" }

func (p cachePublisher) Publish(ctx context.Context, report scoring.Report, _ []byte, digest string) error {
	return p.store.SaveReport(ctx, digest, report)
}

type searchPublisher struct {
	search *search.Service
}

func (p searchPublisher) Name() string { return "search" }

func (p searchPublisher) Publish(_ context.Context, report scoring.Report, _ []byte, _ string) error {
	return p.search.Publish(report)
}

type historyPublisher struct {
	history *history.Service
}

func (p historyPublisher) Name() string { return "history" }

func (p historyPublisher) Publish(_ context.Context, _ scoring.Report, data []byte, digest string) error {
	_, _, err := p.history.Record(data, digest)
	return err
}

type archivePublisher struct {
	archive *archive.Archive
}

func (p archivePublisher) Name() string { return "archive" }

func (p archivePublisher) Publish(ctx context.Context, _ scoring.Report, data []byte, digest string) error {
	_, err := p.archive.Put(ctx, digest, data)
	return err
}
