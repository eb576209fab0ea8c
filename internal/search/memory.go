package search

import (
	"strings"
	"sync"
)

// Memory is a case-insensitive title matcher over the latest report. It is always healthy.
type Memory struct {
	mu      sync.RWMutex
	records []BillRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

// Replace swaps the indexed records.
func (m *Memory) Replace(records []BillRecord) {
	items := make([]BillRecord, len(records))
	copy(items, records)
	m.mu.Lock()
	m.records = items
	m.mu.Unlock()
}

func (m *Memory) Healthy() bool { return true }

// Search returns records whose title contains every whitespace-separated term of q.Text.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))

	m.mu.RLock()
	matches := make([]BillRecord, 0)
	for _, rec := range m.records {
		if q.BillType != "" && rec.BillType != string(q.BillType) {
			continue
		}
		if q.Session != 0 && rec.Session != q.Session {
			continue
		}
		if !containsAll(strings.ToLower(rec.BillTitle), terms) {
			continue
		}
		matches = append(matches, rec)
	}
	m.mu.RUnlock()

	start, end := pageBounds(len(matches), q.Limit, q.Offset)
	results := make([]Result, 0, end-start)
	for _, rec := range matches[start:end] {
		results = append(results, rec.result())
	}
	return results, len(matches), nil
}

func containsAll(title string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(title, term) {
			return false
		}
	}
	return true
}
