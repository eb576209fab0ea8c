// Package scoring folds sponsorship, support and vote outcomes into per-bill member scores.
package scoring

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"dietscore/internal/affiliation"
	"dietscore/internal/snapshot"
	"dietscore/internal/store"
)

// Point table.
const (
	PointsSponsor        = 10
	PointsSponsorGroup   = 2
	PointsSupporter      = 5
	PointsBlocVote       = 2
	PointsIndividualVote = 5
)

// BlocChamber records vote results per group; IndividualChamber records them per member.
const (
	BlocChamber       = store.ChamberRepresentatives
	IndividualChamber = store.ChamberCouncillors
)

// Aggregator scores every bill of one snapshot. It keeps no state between bills.
type Aggregator struct {
	snap     *snapshot.Snapshot
	resolver *affiliation.Resolver
	logger   *slog.Logger
}

type Option func(*Aggregator)

// WithLogger sets the logger for skipped rows.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator scores bills of snap, resolving group-based rules through resolver.
func NewAggregator(snap *snapshot.Snapshot, resolver *affiliation.Resolver, opts ...Option) *Aggregator {
	a := &Aggregator{snap: snap, resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Score builds the report for every bill in ascending id order. An empty snapshot yields an
// empty, non-nil report.
func (a *Aggregator) Score() Report {
	bills := make([]store.Bill, len(a.snap.Bills))
	copy(bills, a.snap.Bills)
	sort.Slice(bills, func(i, j int) bool { return bills[i].ID < bills[j].ID })

	report := make(Report, 0, len(bills))
	for _, bill := range bills {
		report = append(report, a.ScoreBill(bill))
	}
	return report
}

// ScoreBill applies the point rules to one bill in a fixed order: sponsors, sponsoring groups,
// supporters, bloc votes, individual votes.
func (a *Aggregator) ScoreBill(bill store.Bill) BillScore {
	s := newSheet()

	sponsors := make(map[int64]struct{})
	for _, row := range a.snap.BillSponsorsByBillID[bill.ID] {
		if !a.knownMember(bill.ID, row.MemberID, "sponsor") {
			continue
		}
		sponsors[row.MemberID] = struct{}{}
		s.add(row.MemberID, PointsSponsor, "sponsor")
	}

	a.scoreSponsorGroups(bill, s, sponsors)

	for _, row := range a.snap.BillSupportersByBillID[bill.ID] {
		if !a.knownMember(bill.ID, row.MemberID, "supporter") {
			continue
		}
		s.add(row.MemberID, PointsSupporter, "supporter")
	}

	for _, vote := range a.snap.BillVotesByBillID[bill.ID] {
		if vote.VotingDate == nil {
			a.logger.Debug("scoring: skipping vote without date", "bill_id", bill.ID, "vote_id", vote.ID)
			continue
		}
		switch vote.Chamber {
		case BlocChamber:
			a.scoreBlocVote(bill, vote, s)
		case IndividualChamber:
			a.scoreIndividualVote(bill, vote, s)
		}
	}

	return a.summarize(bill, s)
}

func (a *Aggregator) scoreSponsorGroups(bill store.Bill, s *sheet, sponsors map[int64]struct{}) {
	if bill.SubmissionDate == nil {
		a.logger.Debug("scoring: bill has no submission date, skipping sponsor groups", "bill_id", bill.ID)
		return
	}
	date := *bill.SubmissionDate

	groups := a.snap.BillSponsorGroupsByBillID[bill.ID]
	if len(groups) > 0 {
		for _, row := range groups {
			reason := fmt.Sprintf("member of sponsoring group %s", a.groupName(row.GroupID))
			for _, memberID := range a.resolver.MembersInGroupOn(row.GroupID, date) {
				if _, ok := sponsors[memberID]; ok {
					continue
				}
				s.add(memberID, PointsSponsorGroup, reason)
			}
		}
		return
	}

	// No credited group: each sponsor's own group on the submission date stands in.
	awarded := make(map[int64]struct{})
	for _, row := range a.snap.BillSponsorsByBillID[bill.ID] {
		if _, ok := sponsors[row.MemberID]; !ok {
			continue
		}
		group, ok := a.resolver.GroupForMemberOn(row.MemberID, date, nil)
		if !ok {
			a.logger.Debug("scoring: sponsor has no group on submission date", "bill_id", bill.ID, "member_id", row.MemberID)
			continue
		}
		reason := fmt.Sprintf("member of sponsor's group %s", group.Name)
		for _, memberID := range a.resolver.MembersInGroupOn(group.ID, date) {
			if _, ok := sponsors[memberID]; ok {
				continue
			}
			if _, ok := awarded[memberID]; ok {
				continue
			}
			awarded[memberID] = struct{}{}
			s.add(memberID, PointsSponsorGroup, reason)
		}
	}
}

func (a *Aggregator) scoreBlocVote(bill store.Bill, vote store.BillVote, s *sheet) {
	date := *vote.VotingDate
	for _, row := range a.snap.BillVoteResultsByGroupByVoteID[vote.ID] {
		points, verb := -PointsBlocVote, "rejected"
		if row.Approved {
			points, verb = PointsBlocVote, "approved"
		}
		reason := fmt.Sprintf("group %s %s in %s vote on %s", a.groupName(row.GroupID), verb, vote.Chamber.Label(), store.FormatDate(date))
		members := a.resolver.MembersInGroupOn(row.GroupID, date)
		if len(members) == 0 {
			a.logger.Debug("scoring: no members resolved for group vote", "bill_id", bill.ID, "vote_id", vote.ID, "group_id", row.GroupID)
		}
		for _, memberID := range members {
			s.add(memberID, points, reason)
		}
	}
}

func (a *Aggregator) scoreIndividualVote(bill store.Bill, vote store.BillVote, s *sheet) {
	date := *vote.VotingDate
	for _, row := range a.snap.BillVoteResultsByMemberByVoteID[vote.ID] {
		if !a.knownMember(bill.ID, row.MemberID, "vote") {
			continue
		}
		points, verb := -PointsIndividualVote, "against"
		if row.Approved {
			points, verb = PointsIndividualVote, "for"
		}
		s.add(row.MemberID, points, fmt.Sprintf("voted %s in %s vote on %s", verb, vote.Chamber.Label(), store.FormatDate(date)))
	}
}

func (a *Aggregator) summarize(bill store.Bill, s *sheet) BillScore {
	out := BillScore{
		BillID:         bill.ID,
		BillTitle:      bill.Title,
		BillType:       bill.Type,
		BillNumber:     bill.SubmissionNumber,
		Session:        bill.SubmissionSession,
		SubmissionDate: formatOptionalDate(bill.SubmissionDate),
		Weight:         Weight(bill),
		MemberScores:   make([]MemberScore, 0, len(s.entries)),
	}

	total := 0
	for memberID, e := range s.entries {
		if e.score == 0 && len(e.breakdown) == 0 {
			continue
		}
		out.MemberScores = append(out.MemberScores, MemberScore{
			MemberID:        memberID,
			MemberName:      a.snap.MemberByID[memberID].DisplayName(),
			Score:           e.score,
			NormalizedScore: NormalizeScore(e.score),
			Breakdown:       e.breakdown,
		})
		switch {
		case e.score > 0:
			out.TotalPositive++
		case e.score < 0:
			out.TotalNegative++
		}
		total += e.score
	}
	sort.Slice(out.MemberScores, func(i, j int) bool {
		x, y := out.MemberScores[i], out.MemberScores[j]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		return x.MemberID < y.MemberID
	})
	if n := len(out.MemberScores); n > 0 {
		out.AverageScore = float64(total) / float64(n)
	}
	return out
}

func (a *Aggregator) knownMember(billID, memberID int64, rule string) bool {
	if _, ok := a.snap.MemberByID[memberID]; ok {
		return true
	}
	a.logger.Warn("scoring: skipping unknown member", "bill_id", billID, "member_id", memberID, "rule", rule)
	return false
}

func (a *Aggregator) groupName(groupID int64) string {
	if g, ok := a.snap.GroupByID[groupID]; ok {
		return g.Name
	}
	return fmt.Sprintf("#%d", groupID)
}

type entry struct {
	score     int
	breakdown []string
}

type sheet struct {
	entries map[int64]*entry
}

func newSheet() *sheet {
	return &sheet{entries: make(map[int64]*entry)}
}

func (s *sheet) add(memberID int64, points int, reason string) {
	e, ok := s.entries[memberID]
	if !ok {
		e = &entry{}
		s.entries[memberID] = e
	}
	e.score += points
	e.breakdown = append(e.breakdown, fmt.Sprintf("%s (%+d)", reason, points))
}

func formatOptionalDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	v := store.FormatDate(*d)
	return &v
}
