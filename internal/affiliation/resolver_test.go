package affiliation

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"dietscore/internal/snapshot"
	"dietscore/internal/store"
)

func workedExample() snapshot.Tables {
	return snapshot.Tables{
		Members: []store.Member{
			{ID: 1, Names: []string{"Member One"}},
			{ID: 2, Names: []string{"Member Two"}},
		},
		Groups: []store.Group{
			{ID: 100, Name: "G1", Chamber: store.ChamberRepresentatives},
			{ID: 101, Name: "G2", Chamber: store.ChamberRepresentatives},
			{ID: 200, Name: "C1", Chamber: store.ChamberCouncillors},
		},
		MemberParties: []store.MemberParty{
			{ID: 1, MemberID: 1, PartyID: 10, Chamber: store.ChamberRepresentatives, StartDate: d(2017, 10, 1), EndDate: d(2021, 1, 25)},
		},
		MemberGroups: []store.MemberGroup{
			{ID: 2, MemberID: 1, GroupID: 101, StartDate: d(2020, 2, 3)},
			{ID: 1, MemberID: 1, GroupID: 100, StartDate: d(2019, 2, 8), EndDate: d(2019, 2, 28)},
			{ID: 3, MemberID: 2, GroupID: 100, StartDate: d(2019, 1, 1), EndDate: d(2019, 12, 31)},
			{ID: 4, MemberID: 1, GroupID: 200, StartDate: d(2022, 1, 1)},
		},
	}
}

func TestGroupForMemberOnWorkedExample(t *testing.T) {
	r := NewResolver(snapshot.Build(workedExample()))
	representatives := store.ChamberRepresentatives

	tests := []struct {
		date      string
		wantGroup int64
		wantOK    bool
	}{
		{date: "2017-09-30", wantOK: false},
		{date: "2017-10-01", wantGroup: 100, wantOK: true},
		{date: "2019-06-01", wantGroup: 100, wantOK: true},
		{date: "2020-02-02", wantGroup: 100, wantOK: true},
		{date: "2020-02-03", wantGroup: 101, wantOK: true},
		{date: "2030-01-01", wantGroup: 101, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			date, err := store.ParseDate(tt.date)
			if err != nil {
				t.Fatalf("ParseDate() error = %v", err)
			}
			got, ok := r.GroupForMemberOn(1, date, &representatives)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantGroup {
				t.Fatalf("group = %d, want %d", got.ID, tt.wantGroup)
			}
		})
	}
}

func TestGroupForMemberOnChamberFilter(t *testing.T) {
	r := NewResolver(snapshot.Build(workedExample()))
	councillors := store.ChamberCouncillors

	if _, ok := r.GroupForMemberOn(1, store.Date(2019, 6, 1), &councillors); ok {
		t.Fatal("expected no councillors group before 2022")
	}
	got, ok := r.GroupForMemberOn(1, store.Date(2023, 1, 1), &councillors)
	if !ok || got.ID != 200 {
		t.Fatalf("expected councillors group 200, got %+v ok=%v", got, ok)
	}
	// Without a chamber filter representatives records are searched first.
	got, ok = r.GroupForMemberOn(1, store.Date(2023, 1, 1), nil)
	if !ok || got.ID != 101 {
		t.Fatalf("expected representatives group 101 first, got %+v ok=%v", got, ok)
	}
}

func TestMembersInGroupOn(t *testing.T) {
	r := NewResolver(snapshot.Build(workedExample()))

	if got := r.MembersInGroupOn(100, store.Date(2019, 6, 1)); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("members on 2019-06-01 = %v, want [1 2]", got)
	}
	if got := r.MembersInGroupOn(100, store.Date(2020, 2, 3)); len(got) != 0 {
		t.Fatalf("expected no members once G1 ended, got %v", got)
	}
	if got := r.MembersInGroupOn(999, store.Date(2020, 1, 1)); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice for unknown group, got %#v", got)
	}
}

func TestMembersInGroupOnDeduplicates(t *testing.T) {
	r := NewResolver(snapshot.Build(snapshot.Tables{
		Members: []store.Member{{ID: 1}},
		Groups:  []store.Group{{ID: 100, Chamber: store.ChamberCouncillors}},
		MemberGroups: []store.MemberGroup{
			{ID: 1, MemberID: 1, GroupID: 100, StartDate: d(2019, 1, 1), EndDate: d(2020, 1, 1)},
			{ID: 2, MemberID: 1, GroupID: 100, StartDate: d(2019, 6, 1)},
		},
	}))
	if got := r.MembersInGroupOn(100, store.Date(2019, 7, 1)); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("expected member listed once, got %v", got)
	}
}

func TestResolverSkipsDanglingRecords(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r := NewResolver(snapshot.Build(snapshot.Tables{
		Members: []store.Member{{ID: 1}},
		Groups:  []store.Group{{ID: 100, Chamber: store.ChamberRepresentatives}},
		MemberGroups: []store.MemberGroup{
			{ID: 1, MemberID: 1, GroupID: 999, StartDate: d(2019, 1, 1)},
			{ID: 2, MemberID: 42, GroupID: 100, StartDate: d(2019, 1, 1)},
			{ID: 3, MemberID: 1, GroupID: 100, StartDate: d(2019, 1, 1)},
		},
	}), WithLogger(logger))

	if _, ok := r.Extended(1); ok {
		t.Fatal("expected record with unknown group to be skipped")
	}
	if _, ok := r.Extended(2); ok {
		t.Fatal("expected record with unknown member to be skipped")
	}
	if _, ok := r.Extended(3); !ok {
		t.Fatal("expected valid record to be resolved")
	}
	if got := r.MembersInGroupOn(100, store.Date(2020, 1, 1)); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("expected only member 1, got %v", got)
	}
	if got := strings.Count(logs.String(), "skipping member group record"); got != 2 {
		t.Fatalf("expected 2 skip warnings, got %d:\n%s", got, logs.String())
	}
}

func TestHistoryOrdersByChamberThenStart(t *testing.T) {
	r := NewResolver(snapshot.Build(workedExample()))
	history := r.History(1)
	ids := make([]int64, 0, len(history))
	for _, ext := range history {
		ids = append(ids, ext.Record.ID)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2, 4}) {
		t.Fatalf("history order = %v, want [1 2 4]", ids)
	}
	if got := r.History(999); len(got) != 0 {
		t.Fatalf("expected empty history for unknown member, got %v", got)
	}
}

func TestExtendedIsSupersetOfRecorded(t *testing.T) {
	r := NewResolver(snapshot.Build(workedExample()))
	for _, rec := range workedExample().MemberGroups {
		ext, ok := r.Extended(rec.ID)
		if !ok {
			t.Fatalf("record %d not resolved", rec.ID)
		}
		if rec.StartDate != nil && ext.Interval.Start.After(*rec.StartDate) {
			t.Errorf("record %d: start narrowed to %s", rec.ID, store.FormatDate(ext.Interval.Start))
		}
		if rec.EndDate != nil && ext.Interval.End.Before(*rec.EndDate) {
			t.Errorf("record %d: end narrowed to %s", rec.ID, store.FormatDate(ext.Interval.End))
		}
	}
}

func TestMembershipQueriesAgree(t *testing.T) {
	tables := workedExample()
	snap := snapshot.Build(tables)
	r := NewResolver(snap)

	// Record 2 is widened back to 2019-02-28, overlapping G1's extension.
	if ext, _ := r.Extended(2); !ext.Interval.Contains(store.Date(2019, 6, 1)) {
		t.Fatalf("expected overlapping extension, got %+v", ext.Interval)
	}
	if got := r.MembersInGroupOn(101, store.Date(2019, 6, 1)); len(got) != 0 {
		t.Fatalf("member 1 belonged to G1 on 2019-06-01, G2 members = %v", got)
	}

	for date := store.Date(2017, 9, 1); date.Before(store.Date(2023, 3, 1)); date = date.AddDate(0, 0, 7) {
		for _, member := range tables.Members {
			for _, chamber := range store.Chambers {
				want, ok := r.GroupForMemberOn(member.ID, date, &chamber)
				for _, group := range snap.GroupsInChamber(chamber) {
					listed := containsID(r.MembersInGroupOn(group.ID, date), member.ID)
					if expected := ok && group.ID == want.ID; listed != expected {
						t.Fatalf("%s member %d group %d: listed = %v, GroupForMemberOn = %d (ok=%v)",
							store.FormatDate(date), member.ID, group.ID, listed, want.ID, ok)
					}
				}
			}
		}
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
