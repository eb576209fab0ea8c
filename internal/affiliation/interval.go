// Package affiliation reconciles sparse group-membership records with authoritative party
// stints and answers point-in-time membership queries.
package affiliation

import (
	"sort"
	"time"

	"dietscore/internal/store"
)

var (
	// MinDate stands in for an absent lower bound.
	MinDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	// MaxDate stands in for an absent upper bound.
	MaxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether Start <= d < End.
func (iv Interval) Contains(d time.Time) bool {
	return !d.Before(iv.Start) && d.Before(iv.End)
}

// OpenStart reports whether the interval has no lower bound.
func (iv Interval) OpenStart() bool { return !iv.Start.After(MinDate) }

// OpenEnd reports whether the interval has no upper bound.
func (iv Interval) OpenEnd() bool { return !iv.End.Before(MaxDate) }

// Extend widens one member-group record toward its neighbours and the member's party stints.
//
// siblings are the member's records in the same chamber, in any order, and may include g itself.
// parties are the member's party stints in that chamber; when several contain the same date the
// first one in slice order wins.
func Extend(g store.MemberGroup, siblings []store.MemberGroup, parties []store.MemberParty) Interval {
	sorted := make([]store.MemberGroup, len(siblings))
	copy(sorted, siblings)
	SortRecords(sorted)
	return extendSorted(g, sorted, parties)
}

// SortRecords orders records by start date (absent first), then by id.
func SortRecords(records []store.MemberGroup) {
	sort.SliceStable(records, func(i, j int) bool {
		return recordBefore(records[i], records[j])
	})
}

func recordBefore(a, b store.MemberGroup) bool {
	as, bs := lower(a.StartDate), lower(b.StartDate)
	if !as.Equal(bs) {
		return as.Before(bs)
	}
	return a.ID < b.ID
}

func extendSorted(g store.MemberGroup, sorted []store.MemberGroup, parties []store.MemberParty) Interval {
	groupStart := lower(g.StartDate)
	groupEnd := upper(g.EndDate)

	var prev, next *store.MemberGroup
	for i := range sorted {
		r := &sorted[i]
		if r.ID == g.ID {
			continue
		}
		if recordBefore(*r, g) {
			prev = r
		} else if next == nil {
			next = r
		}
	}

	partyAtStart := partyContaining(parties, groupStart)
	partyAtEnd := partyContaining(parties, groupEnd)

	iv := Interval{Start: groupStart, End: groupEnd}

	if partyAtStart != nil {
		start := lower(partyAtStart.StartDate)
		bound := MinDate
		if prev != nil {
			if prev.EndDate != nil {
				bound = *prev.EndDate
			} else if prev.StartDate != nil {
				bound = *prev.StartDate
			}
		}
		if bound.After(start) {
			start = bound
		}
		iv.Start = start
	}

	switch {
	case partyAtEnd != nil:
		end := upper(partyAtEnd.EndDate)
		if next != nil && next.StartDate != nil && next.StartDate.Before(end) {
			end = *next.StartDate
		}
		iv.End = end
	case next != nil && next.StartDate != nil:
		iv.End = *next.StartDate
	}

	// Known boundaries are never narrowed. An absent boundary is unknown, so the
	// neighbour or party data above is allowed to close it.
	if g.StartDate != nil && iv.Start.After(*g.StartDate) {
		iv.Start = *g.StartDate
	}
	if g.EndDate != nil && iv.End.Before(*g.EndDate) {
		iv.End = *g.EndDate
	}
	return iv
}

// partyContaining returns the first stint whose closed range [start, end] holds d.
func partyContaining(parties []store.MemberParty, d time.Time) *store.MemberParty {
	for i := range parties {
		p := &parties[i]
		if p.StartDate != nil && d.Before(*p.StartDate) {
			continue
		}
		if p.EndDate != nil && d.After(*p.EndDate) {
			continue
		}
		return p
	}
	return nil
}

func lower(d *time.Time) time.Time {
	if d == nil {
		return MinDate
	}
	return *d
}

func upper(d *time.Time) time.Time {
	if d == nil {
		return MaxDate
	}
	return *d
}
