package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SQLStore reads whole tables. Every reader returns rows in primary-key order.
type SQLStore struct {
	db *DB
}

func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *DB {
	return s.db
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, names, name_reading FROM member ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var (
			item    Member
			names   string
			reading sql.NullString
		)
		if err := rows.Scan(&item.ID, &names, &reading); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &item.Names); err != nil {
			return nil, fmt.Errorf("decode names of member %d: %w", item.ID, err)
		}
		if item.Names == nil {
			item.Names = []string{}
		}
		if reading.Valid {
			item.NameReading = &reading.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListParties(ctx context.Context) ([]Party, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM party ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	items := make([]Party, 0)
	for rows.Next() {
		var item Party
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, chamber FROM parliamentary_group ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	items := make([]Group, 0)
	for rows.Next() {
		var (
			item    Group
			chamber string
		)
		if err := rows.Scan(&item.ID, &item.Name, &chamber); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if item.Chamber, err = ParseChamber(chamber); err != nil {
			return nil, fmt.Errorf("group %d: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListMemberParties(ctx context.Context) ([]MemberParty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, party_id, chamber, start_date, end_date
		FROM member_party
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list member parties: %w", err)
	}
	defer rows.Close()

	items := make([]MemberParty, 0)
	for rows.Next() {
		var (
			item       MemberParty
			chamber    string
			start, end sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.MemberID, &item.PartyID, &chamber, &start, &end); err != nil {
			return nil, fmt.Errorf("scan member party: %w", err)
		}
		if item.Chamber, err = ParseChamber(chamber); err != nil {
			return nil, fmt.Errorf("member party %d: %w", item.ID, err)
		}
		if item.StartDate, err = nullDate(start); err != nil {
			return nil, fmt.Errorf("member party %d start: %w", item.ID, err)
		}
		if item.EndDate, err = nullDate(end); err != nil {
			return nil, fmt.Errorf("member party %d end: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member parties: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListMemberGroups(ctx context.Context) ([]MemberGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, group_id, start_date, end_date
		FROM member_group
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list member groups: %w", err)
	}
	defer rows.Close()

	items := make([]MemberGroup, 0)
	for rows.Next() {
		var (
			item       MemberGroup
			start, end sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.MemberID, &item.GroupID, &start, &end); err != nil {
			return nil, fmt.Errorf("scan member group: %w", err)
		}
		if item.StartDate, err = nullDate(start); err != nil {
			return nil, fmt.Errorf("member group %d start: %w", item.ID, err)
		}
		if item.EndDate, err = nullDate(end); err != nil {
			return nil, fmt.Errorf("member group %d end: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member groups: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListBills(ctx context.Context) ([]Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, submission_session, submission_number, title, submission_date, deliberation_completed, passed
		FROM bill
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	items := make([]Bill, 0)
	for rows.Next() {
		var (
			item      Bill
			billType  string
			submitted sql.NullString
		)
		if err := rows.Scan(
			&item.ID,
			&billType,
			&item.SubmissionSession,
			&item.SubmissionNumber,
			&item.Title,
			&submitted,
			&item.DeliberationCompleted,
			&item.Passed,
		); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		if item.Type, err = ParseBillType(billType); err != nil {
			return nil, fmt.Errorf("bill %d: %w", item.ID, err)
		}
		if item.SubmissionDate, err = nullDate(submitted); err != nil {
			return nil, fmt.Errorf("bill %d submission date: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListBillSponsors(ctx context.Context) ([]BillSponsor, error) {
	pairs, err := s.listPairs(ctx, "bill sponsors", `SELECT bill_id, member_id FROM bill_sponsor ORDER BY bill_id, member_id`)
	if err != nil {
		return nil, err
	}
	items := make([]BillSponsor, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, BillSponsor{BillID: p[0], MemberID: p[1]})
	}
	return items, nil
}

func (s *SQLStore) ListBillSupporters(ctx context.Context) ([]BillSupporter, error) {
	pairs, err := s.listPairs(ctx, "bill supporters", `SELECT bill_id, member_id FROM bill_supporter ORDER BY bill_id, member_id`)
	if err != nil {
		return nil, err
	}
	items := make([]BillSupporter, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, BillSupporter{BillID: p[0], MemberID: p[1]})
	}
	return items, nil
}

func (s *SQLStore) ListBillSponsorGroups(ctx context.Context) ([]BillSponsorGroup, error) {
	pairs, err := s.listPairs(ctx, "bill sponsor groups", `SELECT bill_id, group_id FROM bill_sponsor_group ORDER BY bill_id, group_id`)
	if err != nil {
		return nil, err
	}
	items := make([]BillSponsorGroup, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, BillSponsorGroup{BillID: p[0], GroupID: p[1]})
	}
	return items, nil
}

func (s *SQLStore) listPairs(ctx context.Context, label, query string) ([][2]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", label, err)
	}
	defer rows.Close()

	items := make([][2]int64, 0)
	for rows.Next() {
		var pair [2]int64
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		items = append(items, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return items, nil
}

func (s *SQLStore) ListBillVotes(ctx context.Context) ([]BillVote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, chamber, voting_method, voting_date
		FROM bill_votes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list bill votes: %w", err)
	}
	defer rows.Close()

	items := make([]BillVote, 0)
	for rows.Next() {
		var (
			item    BillVote
			chamber string
			voted   sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.BillID, &chamber, &item.VotingMethod, &voted); err != nil {
			return nil, fmt.Errorf("scan bill vote: %w", err)
		}
		if item.Chamber, err = ParseChamber(chamber); err != nil {
			return nil, fmt.Errorf("bill vote %d: %w", item.ID, err)
		}
		if item.VotingDate, err = nullDate(voted); err != nil {
			return nil, fmt.Errorf("bill vote %d voting date: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill votes: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListBillVoteResultsByGroup(ctx context.Context) ([]BillVoteResultByGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_votes_id, group_id, approved
		FROM bill_vote_result_by_group
		ORDER BY bill_votes_id, group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list group vote results: %w", err)
	}
	defer rows.Close()

	items := make([]BillVoteResultByGroup, 0)
	for rows.Next() {
		var item BillVoteResultByGroup
		if err := rows.Scan(&item.BillVotesID, &item.GroupID, &item.Approved); err != nil {
			return nil, fmt.Errorf("scan group vote result: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group vote results: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListBillVoteResultsByMember(ctx context.Context) ([]BillVoteResultByMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_votes_id, member_id, approved
		FROM bill_vote_result_by_member
		ORDER BY bill_votes_id, member_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list member vote results: %w", err)
	}
	defer rows.Close()

	items := make([]BillVoteResultByMember, 0)
	for rows.Next() {
		var item BillVoteResultByMember
		if err := rows.Scan(&item.BillVotesID, &item.MemberID, &item.Approved); err != nil {
			return nil, fmt.Errorf("scan member vote result: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member vote results: %w", err)
	}
	return items, nil
}

// nullDate reads DATE columns through their text form: pgx hands back time.Time,
// which database/sql renders as RFC 3339, and SQLite stores the literal string.
func nullDate(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := ParseDate(strings.TrimSpace(value.String))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
