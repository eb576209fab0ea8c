// Package search indexes scored bills for title search.
package search

import (
	"dietscore/internal/scoring"
	"dietscore/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	BillID        int64          `json:"billId"`
	Title         string         `json:"title"`
	BillType      store.BillType `json:"billType"`
	Session       int            `json:"session"`
	BillNumber    int            `json:"billNumber"`
	TotalPositive int            `json:"totalPositive"`
	TotalNegative int            `json:"totalNegative"`
}

// Query describes a search request.
type Query struct {
	Text     string
	BillType store.BillType // empty = all types
	Session  int            // 0 = all sessions
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a title search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// BillRecord is the data we index for a scored bill.
type BillRecord struct {
	BillID         int64   `json:"billId"`
	BillTitle      string  `json:"billTitle"`
	BillType       string  `json:"billType"`
	Session        int     `json:"session"`
	BillNumber     int     `json:"billNumber"`
	SubmissionDate string  `json:"submissionDate,omitempty"`
	Weight         float64 `json:"weight"`
	TotalPositive  int     `json:"totalPositive"`
	TotalNegative  int     `json:"totalNegative"`
	AverageScore   float64 `json:"averageScore"`
}

// RecordsFromReport flattens a report into index records.
func RecordsFromReport(report scoring.Report) []BillRecord {
	records := make([]BillRecord, 0, len(report))
	for _, b := range report {
		rec := BillRecord{
			BillID:        b.BillID,
			BillTitle:     b.BillTitle,
			BillType:      string(b.BillType),
			Session:       b.Session,
			BillNumber:    b.BillNumber,
			Weight:        b.Weight,
			TotalPositive: b.TotalPositive,
			TotalNegative: b.TotalNegative,
			AverageScore:  b.AverageScore,
		}
		if b.SubmissionDate != nil {
			rec.SubmissionDate = *b.SubmissionDate
		}
		records = append(records, rec)
	}
	return records
}

func (r BillRecord) result() Result {
	return Result{
		BillID:        r.BillID,
		Title:         r.BillTitle,
		BillType:      store.BillType(r.BillType),
		Session:       r.Session,
		BillNumber:    r.BillNumber,
		TotalPositive: r.TotalPositive,
		TotalNegative: r.TotalNegative,
	}
}

func pageBounds(total, limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
