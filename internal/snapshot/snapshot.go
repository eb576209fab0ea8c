// Package snapshot bulk-loads the source tables once and indexes them for the resolver and scorer.
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"dietscore/internal/store"
)

// Source is the read-only storage collaborator. *store.SQLStore satisfies it.
type Source interface {
	ListMembers(context.Context) ([]store.Member, error)
	ListParties(context.Context) ([]store.Party, error)
	ListGroups(context.Context) ([]store.Group, error)
	ListMemberParties(context.Context) ([]store.MemberParty, error)
	ListMemberGroups(context.Context) ([]store.MemberGroup, error)
	ListBills(context.Context) ([]store.Bill, error)
	ListBillSponsors(context.Context) ([]store.BillSponsor, error)
	ListBillSupporters(context.Context) ([]store.BillSupporter, error)
	ListBillSponsorGroups(context.Context) ([]store.BillSponsorGroup, error)
	ListBillVotes(context.Context) ([]store.BillVote, error)
	ListBillVoteResultsByGroup(context.Context) ([]store.BillVoteResultByGroup, error)
	ListBillVoteResultsByMember(context.Context) ([]store.BillVoteResultByMember, error)
}

// Tables holds one full read of every source table.
type Tables struct {
	Members               []store.Member
	Parties               []store.Party
	Groups                []store.Group
	MemberParties         []store.MemberParty
	MemberGroups          []store.MemberGroup
	Bills                 []store.Bill
	BillSponsors          []store.BillSponsor
	BillSupporters        []store.BillSupporter
	BillSponsorGroups     []store.BillSponsorGroup
	BillVotes             []store.BillVote
	BillVoteResultsGroup  []store.BillVoteResultByGroup
	BillVoteResultsMember []store.BillVoteResultByMember
}

// Snapshot is the indexed, immutable view of one Tables read. Slices keep source order.
// Callers must not mutate anything reachable from a Snapshot.
type Snapshot struct {
	Bills []store.Bill

	MemberByID map[int64]store.Member
	PartyByID  map[int64]store.Party
	GroupByID  map[int64]store.Group

	MemberGroupsByMemberID  map[int64][]store.MemberGroup
	MemberGroupsByGroupID   map[int64][]store.MemberGroup
	MemberPartiesByMemberID map[int64][]store.MemberParty

	BillSponsorsByBillID      map[int64][]store.BillSponsor
	BillSponsorGroupsByBillID map[int64][]store.BillSponsorGroup
	BillSupportersByBillID    map[int64][]store.BillSupporter
	BillVotesByBillID         map[int64][]store.BillVote

	BillVoteResultsByGroupByVoteID  map[int64][]store.BillVoteResultByGroup
	BillVoteResultsByMemberByVoteID map[int64][]store.BillVoteResultByMember
}

// Load reads every table concurrently. Any read failure aborts the whole load.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	var t Tables
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		t.Members, err = src.ListMembers(ctx)
		return wrap("members", err)
	})
	g.Go(func() (err error) {
		t.Parties, err = src.ListParties(ctx)
		return wrap("parties", err)
	})
	g.Go(func() (err error) {
		t.Groups, err = src.ListGroups(ctx)
		return wrap("groups", err)
	})
	g.Go(func() (err error) {
		t.MemberParties, err = src.ListMemberParties(ctx)
		return wrap("member parties", err)
	})
	g.Go(func() (err error) {
		t.MemberGroups, err = src.ListMemberGroups(ctx)
		return wrap("member groups", err)
	})
	g.Go(func() (err error) {
		t.Bills, err = src.ListBills(ctx)
		return wrap("bills", err)
	})
	g.Go(func() (err error) {
		t.BillSponsors, err = src.ListBillSponsors(ctx)
		return wrap("bill sponsors", err)
	})
	g.Go(func() (err error) {
		t.BillSupporters, err = src.ListBillSupporters(ctx)
		return wrap("bill supporters", err)
	})
	g.Go(func() (err error) {
		t.BillSponsorGroups, err = src.ListBillSponsorGroups(ctx)
		return wrap("bill sponsor groups", err)
	})
	g.Go(func() (err error) {
		t.BillVotes, err = src.ListBillVotes(ctx)
		return wrap("bill votes", err)
	})
	g.Go(func() (err error) {
		t.BillVoteResultsGroup, err = src.ListBillVoteResultsByGroup(ctx)
		return wrap("group vote results", err)
	})
	g.Go(func() (err error) {
		t.BillVoteResultsMember, err = src.ListBillVoteResultsByMember(ctx)
		return wrap("member vote results", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Build(t), nil
}

func wrap(table string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", table, err)
}

// Build groups the tables by key. It does no filtering and no date logic.
func Build(t Tables) *Snapshot {
	s := &Snapshot{
		Bills:                           make([]store.Bill, 0, len(t.Bills)),
		MemberByID:                      make(map[int64]store.Member, len(t.Members)),
		PartyByID:                       make(map[int64]store.Party, len(t.Parties)),
		GroupByID:                       make(map[int64]store.Group, len(t.Groups)),
		MemberGroupsByMemberID:          make(map[int64][]store.MemberGroup),
		MemberGroupsByGroupID:           make(map[int64][]store.MemberGroup),
		MemberPartiesByMemberID:         make(map[int64][]store.MemberParty),
		BillSponsorsByBillID:            make(map[int64][]store.BillSponsor),
		BillSponsorGroupsByBillID:       make(map[int64][]store.BillSponsorGroup),
		BillSupportersByBillID:          make(map[int64][]store.BillSupporter),
		BillVotesByBillID:               make(map[int64][]store.BillVote),
		BillVoteResultsByGroupByVoteID:  make(map[int64][]store.BillVoteResultByGroup),
		BillVoteResultsByMemberByVoteID: make(map[int64][]store.BillVoteResultByMember),
	}

	s.Bills = append(s.Bills, t.Bills...)
	for _, m := range t.Members {
		s.MemberByID[m.ID] = m
	}
	for _, p := range t.Parties {
		s.PartyByID[p.ID] = p
	}
	for _, g := range t.Groups {
		s.GroupByID[g.ID] = g
	}
	for _, mg := range t.MemberGroups {
		s.MemberGroupsByMemberID[mg.MemberID] = append(s.MemberGroupsByMemberID[mg.MemberID], mg)
		s.MemberGroupsByGroupID[mg.GroupID] = append(s.MemberGroupsByGroupID[mg.GroupID], mg)
	}
	for _, mp := range t.MemberParties {
		s.MemberPartiesByMemberID[mp.MemberID] = append(s.MemberPartiesByMemberID[mp.MemberID], mp)
	}
	for _, row := range t.BillSponsors {
		s.BillSponsorsByBillID[row.BillID] = append(s.BillSponsorsByBillID[row.BillID], row)
	}
	for _, row := range t.BillSponsorGroups {
		s.BillSponsorGroupsByBillID[row.BillID] = append(s.BillSponsorGroupsByBillID[row.BillID], row)
	}
	for _, row := range t.BillSupporters {
		s.BillSupportersByBillID[row.BillID] = append(s.BillSupportersByBillID[row.BillID], row)
	}
	for _, row := range t.BillVotes {
		s.BillVotesByBillID[row.BillID] = append(s.BillVotesByBillID[row.BillID], row)
	}
	for _, row := range t.BillVoteResultsGroup {
		s.BillVoteResultsByGroupByVoteID[row.BillVotesID] = append(s.BillVoteResultsByGroupByVoteID[row.BillVotesID], row)
	}
	for _, row := range t.BillVoteResultsMember {
		s.BillVoteResultsByMemberByVoteID[row.BillVotesID] = append(s.BillVoteResultsByMemberByVoteID[row.BillVotesID], row)
	}
	return s
}

// GroupsInChamber returns the chamber's groups in id order.
func (s *Snapshot) GroupsInChamber(chamber store.Chamber) []store.Group {
	items := make([]store.Group, 0)
	for _, g := range s.GroupByID {
		if g.Chamber == chamber {
			items = append(items, g)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
