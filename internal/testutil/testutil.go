// Package testutil builds throwaway SQLite databases with the full schema for tests.
package testutil

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"dietscore/internal/store"
)

// MigrationsDir is the repository's migration directory, independent of the test's working directory.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "db", "migrations")
}

// SetupTestDB opens a fresh SQLite database under t.TempDir and applies every migration.
func SetupTestDB(t *testing.T) *store.DB {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "dietscore.db") + "?_pragma=busy_timeout(5000)"
	db, err := store.Open(ctx, store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := store.ApplyMigrations(ctx, db, MigrationsDir()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return db
}

// Fixture is a set of rows to insert, one slice per table.
type Fixture struct {
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

// Seed inserts the fixture rows in dependency order.
func Seed(t *testing.T, db *store.DB, f Fixture) {
	t.Helper()

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.ExecContext(context.Background(), db.Rebind(query), args...); err != nil {
			t.Fatalf("Failed to seed: %v\n%s", err, query)
		}
	}

	for _, m := range f.Members {
		names, err := json.Marshal(m.Names)
		if err != nil {
			t.Fatalf("Failed to encode names: %v", err)
		}
		exec(`INSERT INTO member (id, names, name_reading) VALUES ($1, $2, $3)`, m.ID, string(names), m.NameReading)
	}
	for _, p := range f.Parties {
		exec(`INSERT INTO party (id, name) VALUES ($1, $2)`, p.ID, p.Name)
	}
	for _, g := range f.Groups {
		exec(`INSERT INTO parliamentary_group (id, name, chamber) VALUES ($1, $2, $3)`, g.ID, g.Name, string(g.Chamber))
	}
	for _, mp := range f.MemberParties {
		exec(`INSERT INTO member_party (id, member_id, party_id, chamber, start_date, end_date) VALUES ($1, $2, $3, $4, $5, $6)`,
			mp.ID, mp.MemberID, mp.PartyID, string(mp.Chamber), dateArg(mp.StartDate), dateArg(mp.EndDate))
	}
	for _, mg := range f.MemberGroups {
		exec(`INSERT INTO member_group (id, member_id, group_id, start_date, end_date) VALUES ($1, $2, $3, $4, $5)`,
			mg.ID, mg.MemberID, mg.GroupID, dateArg(mg.StartDate), dateArg(mg.EndDate))
	}
	for _, b := range f.Bills {
		exec(`INSERT INTO bill (id, type, submission_session, submission_number, title, submission_date, deliberation_completed, passed) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, string(b.Type), b.SubmissionSession, b.SubmissionNumber, b.Title, dateArg(b.SubmissionDate), b.DeliberationCompleted, b.Passed)
	}
	for _, s := range f.BillSponsors {
		exec(`INSERT INTO bill_sponsor (bill_id, member_id) VALUES ($1, $2)`, s.BillID, s.MemberID)
	}
	for _, s := range f.BillSupporters {
		exec(`INSERT INTO bill_supporter (bill_id, member_id) VALUES ($1, $2)`, s.BillID, s.MemberID)
	}
	for _, s := range f.BillSponsorGroups {
		exec(`INSERT INTO bill_sponsor_group (bill_id, group_id) VALUES ($1, $2)`, s.BillID, s.GroupID)
	}
	for _, v := range f.BillVotes {
		exec(`INSERT INTO bill_votes (id, bill_id, chamber, voting_method, voting_date) VALUES ($1, $2, $3, $4, $5)`,
			v.ID, v.BillID, string(v.Chamber), v.VotingMethod, dateArg(v.VotingDate))
	}
	for _, r := range f.BillVoteResultsGroup {
		exec(`INSERT INTO bill_vote_result_by_group (bill_votes_id, group_id, approved) VALUES ($1, $2, $3)`, r.BillVotesID, r.GroupID, r.Approved)
	}
	for _, r := range f.BillVoteResultsMember {
		exec(`INSERT INTO bill_vote_result_by_member (bill_votes_id, member_id, approved) VALUES ($1, $2, $3)`, r.BillVotesID, r.MemberID, r.Approved)
	}
}

func dateArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return store.FormatDate(*d)
}
