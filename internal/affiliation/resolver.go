package affiliation

import (
	"log/slog"
	"sort"
	"time"

	"dietscore/internal/snapshot"
	"dietscore/internal/store"
)

// Extended is a member-group record together with its group and widened interval.
type Extended struct {
	Record   store.MemberGroup
	Group    store.Group
	Interval Interval
}

// Resolver answers membership queries against one snapshot. All extended intervals are
// computed up front, so a Resolver is read-only and safe for concurrent use.
type Resolver struct {
	logger   *slog.Logger
	byRecord map[int64]Extended
	byMember map[int64][]Extended
	byGroup  map[int64][]Extended
}

type Option func(*Resolver)

// WithLogger sets the logger used for skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver extends every member-group record in snap. Records pointing at an unknown member or
// group are logged and left out.
func NewResolver(snap *snapshot.Snapshot, opts ...Option) *Resolver {
	r := &Resolver{
		logger:   slog.Default(),
		byRecord: make(map[int64]Extended),
		byMember: make(map[int64][]Extended),
		byGroup:  make(map[int64][]Extended),
	}
	for _, opt := range opts {
		opt(r)
	}

	memberIDs := make([]int64, 0, len(snap.MemberGroupsByMemberID))
	for id := range snap.MemberGroupsByMemberID {
		memberIDs = append(memberIDs, id)
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	for _, memberID := range memberIDs {
		records := snap.MemberGroupsByMemberID[memberID]
		if _, ok := snap.MemberByID[memberID]; !ok {
			for _, rec := range records {
				r.logger.Warn("affiliation: skipping member group record", "record_id", rec.ID, "member_id", memberID, "reason", "unknown member")
			}
			continue
		}

		byChamber := make(map[store.Chamber][]store.MemberGroup, len(store.Chambers))
		for _, rec := range records {
			group, ok := snap.GroupByID[rec.GroupID]
			if !ok {
				r.logger.Warn("affiliation: skipping member group record", "record_id", rec.ID, "group_id", rec.GroupID, "reason", "unknown group")
				continue
			}
			byChamber[group.Chamber] = append(byChamber[group.Chamber], rec)
		}

		for _, chamber := range store.Chambers {
			sorted := byChamber[chamber]
			if len(sorted) == 0 {
				continue
			}
			SortRecords(sorted)
			parties := partiesInChamber(snap.MemberPartiesByMemberID[memberID], chamber)
			for _, rec := range sorted {
				ext := Extended{
					Record:   rec,
					Group:    snap.GroupByID[rec.GroupID],
					Interval: extendSorted(rec, sorted, parties),
				}
				r.byRecord[rec.ID] = ext
				r.byMember[memberID] = append(r.byMember[memberID], ext)
				r.byGroup[rec.GroupID] = append(r.byGroup[rec.GroupID], ext)
			}
		}
	}
	return r
}

func partiesInChamber(parties []store.MemberParty, chamber store.Chamber) []store.MemberParty {
	items := make([]store.MemberParty, 0, len(parties))
	for _, p := range parties {
		if p.Chamber == chamber {
			items = append(items, p)
		}
	}
	return items
}

// MembersInGroupOn returns the ids of members whose effective group on date is groupID, ascending
// and without duplicates. Extended intervals of one member may overlap; the member belongs to the
// group of the first matching record, as in GroupForMemberOn.
func (r *Resolver) MembersInGroupOn(groupID int64, date time.Time) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, ext := range r.byGroup[groupID] {
		memberID := ext.Record.MemberID
		if _, dup := seen[memberID]; dup {
			continue
		}
		if !ext.Interval.Contains(date) {
			continue
		}
		chamber := ext.Group.Chamber
		owner, ok := r.recordOn(memberID, date, &chamber)
		if !ok || owner.Group.ID != groupID {
			continue
		}
		seen[memberID] = struct{}{}
		ids = append(ids, memberID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GroupForMemberOn returns the group the member belonged to on date. A nil chamber searches both
// chambers, representatives first. The second result is false when no record matches.
func (r *Resolver) GroupForMemberOn(memberID int64, date time.Time, chamber *store.Chamber) (store.Group, bool) {
	ext, ok := r.recordOn(memberID, date, chamber)
	if !ok {
		return store.Group{}, false
	}
	return ext.Group, true
}

// recordOn is the first record in (chamber, start, id) order whose interval contains date.
func (r *Resolver) recordOn(memberID int64, date time.Time, chamber *store.Chamber) (Extended, bool) {
	for _, ext := range r.byMember[memberID] {
		if chamber != nil && ext.Group.Chamber != *chamber {
			continue
		}
		if ext.Interval.Contains(date) {
			return ext, true
		}
	}
	return Extended{}, false
}

// Extended returns the widened form of one member-group record.
func (r *Resolver) Extended(recordID int64) (Extended, bool) {
	ext, ok := r.byRecord[recordID]
	return ext, ok
}

// History returns the member's extended records ordered by chamber, start date and id.
func (r *Resolver) History(memberID int64) []Extended {
	items := make([]Extended, len(r.byMember[memberID]))
	copy(items, r.byMember[memberID])
	return items
}
