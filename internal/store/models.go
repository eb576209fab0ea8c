package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownChamber  = errors.New("unknown chamber")
	ErrUnknownBillType = errors.New("unknown bill type")
)

// Chamber is one of the two houses of the Diet.
type Chamber string

const (
	// ChamberRepresentatives records vote outcomes per group (bloc votes).
	ChamberRepresentatives Chamber = "representatives"
	// ChamberCouncillors records vote outcomes per member.
	ChamberCouncillors Chamber = "councillors"
)

// Chambers lists every chamber in a fixed order.
var Chambers = []Chamber{ChamberRepresentatives, ChamberCouncillors}

func (c Chamber) Valid() bool {
	switch c {
	case ChamberRepresentatives, ChamberCouncillors:
		return true
	default:
		return false
	}
}

// Label returns the display name used in score breakdowns.
func (c Chamber) Label() string {
	switch c {
	case ChamberRepresentatives:
		return "House of Representatives"
	case ChamberCouncillors:
		return "House of Councillors"
	default:
		return string(c)
	}
}

func ParseChamber(value string) (Chamber, error) {
	c := Chamber(value)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChamber, value)
	}
	return c, nil
}

// BillType is the submission route of a bill.
type BillType string

const (
	BillTypeCabinet         BillType = "cabinet"
	BillTypeRepresentatives BillType = "representatives"
	BillTypeCouncillors     BillType = "councillors"
)

func (t BillType) Valid() bool {
	switch t {
	case BillTypeCabinet, BillTypeRepresentatives, BillTypeCouncillors:
		return true
	default:
		return false
	}
}

func ParseBillType(value string) (BillType, error) {
	t := BillType(value)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBillType, value)
	}
	return t, nil
}

type Member struct {
	ID          int64
	Names       []string
	NameReading *string
}

// DisplayName is the first known name, or a placeholder when none is recorded.
func (m Member) DisplayName() string {
	if len(m.Names) == 0 {
		return fmt.Sprintf("member %d", m.ID)
	}
	return m.Names[0]
}

type Party struct {
	ID   int64
	Name string
}

type Group struct {
	ID      int64
	Name    string
	Chamber Chamber
}

// MemberParty is an authoritative party stint in one chamber.
type MemberParty struct {
	ID        int64
	MemberID  int64
	PartyID   int64
	Chamber   Chamber
	StartDate *time.Time
	EndDate   *time.Time
}

// MemberGroup is a sparse group membership record. Its chamber is the chamber of the group.
type MemberGroup struct {
	ID        int64
	MemberID  int64
	GroupID   int64
	StartDate *time.Time
	EndDate   *time.Time
}

type Bill struct {
	ID                    int64
	Type                  BillType
	SubmissionSession     int
	SubmissionNumber      int
	Title                 string
	SubmissionDate        *time.Time
	DeliberationCompleted bool
	Passed                bool
}

type BillSponsor struct {
	BillID   int64
	MemberID int64
}

type BillSupporter struct {
	BillID   int64
	MemberID int64
}

type BillSponsorGroup struct {
	BillID  int64
	GroupID int64
}

type BillVote struct {
	ID           int64
	BillID       int64
	Chamber      Chamber
	VotingMethod string
	VotingDate   *time.Time
}

type BillVoteResultByGroup struct {
	BillVotesID int64
	GroupID     int64
	Approved    bool
}

type BillVoteResultByMember struct {
	BillVotesID int64
	MemberID    int64
	Approved    bool
}

// Date returns the calendar date y-m-d at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date for optional columns.
func DatePtr(year int, month time.Month, day int) *time.Time {
	d := Date(year, month, day)
	return &d
}

// ParseDate accepts YYYY-MM-DD, optionally followed by a time component.
func ParseDate(value string) (time.Time, error) {
	if len(value) < 10 {
		return time.Time{}, fmt.Errorf("parse date %q: too short", value)
	}
	parsed, err := time.Parse("2006-01-02", value[:10])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return parsed, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
