package search

import (
	"fmt"
	"log/slog"

	"dietscore/internal/scoring"
)

// Service is the facade that tries Meilisearch first and falls back to the in-memory index.
type Service struct {
	meili  *Meili
	memory *Memory
	logger *slog.Logger
	ids    map[int64]struct{}
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{meili: meili, memory: NewMemory(), logger: logger, ids: make(map[int64]struct{})}
}

// Search tries Meilisearch if healthy, otherwise falls back to the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("search: meilisearch error, falling back to memory", "error", err)
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		s.logger.Error("search: memory search", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Publish makes report searchable. The in-memory index is always updated; the returned error
// only reports a Meilisearch failure. Calls must not overlap.
func (s *Service) Publish(report scoring.Report) error {
	records := RecordsFromReport(report)
	s.memory.Replace(records)

	current := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		current[rec.BillID] = struct{}{}
	}
	previous := s.ids
	s.ids = current

	if s.meili == nil {
		return nil
	}
	if !s.meili.Healthy() {
		return fmt.Errorf("index bills: meilisearch unhealthy")
	}
	if err := s.meili.IndexBills(records); err != nil {
		return fmt.Errorf("index bills: %w", err)
	}
	for id := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		if err := s.meili.DeleteBill(id); err != nil {
			return fmt.Errorf("delete bill %d: %w", id, err)
		}
	}
	return nil
}

// Close stops the Meilisearch health monitor, if any.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
