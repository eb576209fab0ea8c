package snapshot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dietscore/internal/store"
	"dietscore/internal/testutil"
)

type fakeSource struct {
	tables     Tables
	failGroups error
}

func (f *fakeSource) ListMembers(context.Context) ([]store.Member, error) {
	return f.tables.Members, nil
}
func (f *fakeSource) ListParties(context.Context) ([]store.Party, error) {
	return f.tables.Parties, nil
}
func (f *fakeSource) ListGroups(context.Context) ([]store.Group, error) {
	if f.failGroups != nil {
		return nil, f.failGroups
	}
	return f.tables.Groups, nil
}
func (f *fakeSource) ListMemberParties(context.Context) ([]store.MemberParty, error) {
	return f.tables.MemberParties, nil
}
func (f *fakeSource) ListMemberGroups(context.Context) ([]store.MemberGroup, error) {
	return f.tables.MemberGroups, nil
}
func (f *fakeSource) ListBills(context.Context) ([]store.Bill, error) {
	return f.tables.Bills, nil
}
func (f *fakeSource) ListBillSponsors(context.Context) ([]store.BillSponsor, error) {
	return f.tables.BillSponsors, nil
}
func (f *fakeSource) ListBillSupporters(context.Context) ([]store.BillSupporter, error) {
	return f.tables.BillSupporters, nil
}
func (f *fakeSource) ListBillSponsorGroups(context.Context) ([]store.BillSponsorGroup, error) {
	return f.tables.BillSponsorGroups, nil
}
func (f *fakeSource) ListBillVotes(context.Context) ([]store.BillVote, error) {
	return f.tables.BillVotes, nil
}
func (f *fakeSource) ListBillVoteResultsByGroup(context.Context) ([]store.BillVoteResultByGroup, error) {
	return f.tables.BillVoteResultsGroup, nil
}
func (f *fakeSource) ListBillVoteResultsByMember(context.Context) ([]store.BillVoteResultByMember, error) {
	return f.tables.BillVoteResultsMember, nil
}

func TestBuildGroupsByKey(t *testing.T) {
	snap := Build(Tables{
		Members: []store.Member{{ID: 1, Names: []string{"A"}}, {ID: 2, Names: []string{"B"}}},
		Groups:  []store.Group{{ID: 10, Name: "G", Chamber: store.ChamberRepresentatives}},
		MemberGroups: []store.MemberGroup{
			{ID: 1, MemberID: 1, GroupID: 10},
			{ID: 2, MemberID: 2, GroupID: 10},
			{ID: 3, MemberID: 1, GroupID: 11},
		},
		BillVotes: []store.BillVote{
			{ID: 5, BillID: 100, Chamber: store.ChamberRepresentatives},
			{ID: 6, BillID: 100, Chamber: store.ChamberCouncillors},
		},
		BillVoteResultsMember: []store.BillVoteResultByMember{{BillVotesID: 6, MemberID: 2, Approved: true}},
	})

	if got := len(snap.MemberGroupsByMemberID[1]); got != 2 {
		t.Fatalf("expected 2 records for member 1, got %d", got)
	}
	if got := snap.MemberGroupsByMemberID[1]; got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("expected source order to be kept, got %+v", got)
	}
	if got := len(snap.MemberGroupsByGroupID[10]); got != 2 {
		t.Fatalf("expected 2 records for group 10, got %d", got)
	}
	// Unknown group ids are still indexed; filtering is the resolver's job.
	if got := len(snap.MemberGroupsByGroupID[11]); got != 1 {
		t.Fatalf("expected dangling record to be indexed, got %d", got)
	}
	if got := len(snap.BillVotesByBillID[100]); got != 2 {
		t.Fatalf("expected 2 votes for bill 100, got %d", got)
	}
	if got := snap.BillVoteResultsByMemberByVoteID[6]; len(got) != 1 || !got[0].Approved {
		t.Fatalf("unexpected member results: %+v", got)
	}
}

func TestBuildEmptyTablesYieldsEmptyMaps(t *testing.T) {
	snap := Build(Tables{})
	if snap.Bills == nil {
		t.Fatal("expected non-nil bills slice")
	}
	maps := map[string]int{
		"MemberByID":                      len(snap.MemberByID),
		"GroupByID":                       len(snap.GroupByID),
		"MemberGroupsByMemberID":          len(snap.MemberGroupsByMemberID),
		"BillVoteResultsByGroupByVoteID":  len(snap.BillVoteResultsByGroupByVoteID),
		"BillVoteResultsByMemberByVoteID": len(snap.BillVoteResultsByMemberByVoteID),
	}
	for name, size := range maps {
		if size != 0 {
			t.Errorf("%s: expected empty map, got %d entries", name, size)
		}
	}
	if snap.MemberByID == nil || snap.BillSponsorsByBillID == nil || snap.BillVoteResultsByGroupByVoteID == nil {
		t.Fatal("expected initialised maps")
	}
}

func TestLoadWrapsReadFailure(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Load(context.Background(), &fakeSource{failGroups: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if !strings.Contains(err.Error(), "load groups") {
		t.Fatalf("expected table name in error, got %q", err.Error())
	}
}

func TestLoadFromSQLStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.Seed(t, db, testutil.Fixture{
		Members: []store.Member{{ID: 1, Names: []string{"A"}}},
		Groups:  []store.Group{{ID: 10, Name: "G", Chamber: store.ChamberCouncillors}},
		MemberGroups: []store.MemberGroup{
			{ID: 1, MemberID: 1, GroupID: 10, StartDate: store.DatePtr(2020, 1, 1)},
		},
		Bills: []store.Bill{{ID: 3, Type: store.BillTypeCabinet, SubmissionSession: 1, SubmissionNumber: 1, Title: "T"}},
	})

	snap, err := Load(context.Background(), store.NewSQLStore(db))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Bills) != 1 || snap.Bills[0].ID != 3 {
		t.Fatalf("unexpected bills: %+v", snap.Bills)
	}
	if got := snap.GroupsInChamber(store.ChamberCouncillors); len(got) != 1 || got[0].ID != 10 {
		t.Fatalf("unexpected councillors groups: %+v", got)
	}
	if got := snap.GroupsInChamber(store.ChamberRepresentatives); len(got) != 0 {
		t.Fatalf("expected no representatives groups, got %+v", got)
	}
}
