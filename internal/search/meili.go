package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"dietscore/internal/store"
)

const idxBills = "dietscore_bills"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the bill index.
// An unreachable server is not an error; the health loop keeps probing it.
func NewMeili(url, apiKey string, logger *slog.Logger) *Meili {
	if logger == nil {
		logger = slog.Default()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("search: meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxBills,
		PrimaryKey: "billId",
	}); err != nil {
		m.logger.Debug("search: create index (may already exist)", "index", idxBills, "error", err)
	}

	index := m.client.Index(idxBills)
	filterable := []interface{}{"billType", "session"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attrs", "index", idxBills, "error", err)
	}
	searchable := []string{"billTitle"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attrs", "index", idxBills, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the bill index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		IndexUID: idxBills,
		Query:    q.Text,
		Limit:    limit,
		Offset:   int64(q.Offset),
	}
	var filters []string
	if q.BillType != "" {
		filters = append(filters, fmt.Sprintf("billType = %q", string(q.BillType)))
	}
	if q.Session != 0 {
		filters = append(filters, fmt.Sprintf("session = %d", q.Session))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	results := make([]Result, 0)
	total := 0
	for _, r := range resp.Results {
		total += int(r.EstimatedTotalHits)
		for _, hit := range r.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		BillID:        decodeInt(hit, "billId"),
		Title:         strings.TrimSpace(decodeString(hit, "billTitle")),
		BillType:      store.BillType(decodeString(hit, "billType")),
		Session:       int(decodeInt(hit, "session")),
		BillNumber:    int(decodeInt(hit, "billNumber")),
		TotalPositive: int(decodeInt(hit, "totalPositive")),
		TotalNegative: int(decodeInt(hit, "totalNegative")),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// IndexBills adds or replaces bill records.
func (m *Meili) IndexBills(records []BillRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxBills).AddDocuments(records, nil)
	return err
}

// DeleteBill removes one bill from the index.
func (m *Meili) DeleteBill(billID int64) error {
	_, err := m.client.Index(idxBills).DeleteDocument(strconv.FormatInt(billID, 10), nil)
	return err
}
