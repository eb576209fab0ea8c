package scoring

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"dietscore/internal/store"
)

// Report is one entry per bill in ascending bill id order.
type Report []BillScore

type BillScore struct {
	BillID         int64          `json:"billId"`
	BillTitle      string         `json:"billTitle"`
	BillType       store.BillType `json:"billType"`
	BillNumber     int            `json:"billNumber"`
	Session        int            `json:"session"`
	SubmissionDate *string        `json:"submissionDate"`
	Weight         float64        `json:"weight"`
	MemberScores   []MemberScore  `json:"memberScores"`
	TotalPositive  int            `json:"totalPositive"`
	TotalNegative  int            `json:"totalNegative"`
	AverageScore   float64        `json:"averageScore"`
}

type MemberScore struct {
	MemberID        int64    `json:"memberId"`
	MemberName      string   `json:"memberName"`
	Score           int      `json:"score"`
	NormalizedScore float64  `json:"normalizedScore"`
	Breakdown       []string `json:"breakdown"`
}

// Bill returns the entry for billID.
func (r Report) Bill(billID int64) (BillScore, bool) {
	for _, b := range r {
		if b.BillID == billID {
			return b, true
		}
	}
	return BillScore{}, false
}

const (
	minScore = -10
	maxScore = 12
)

// NormalizeScore maps [-10, 12] linearly onto [-1, 1]. Values outside the range are not clamped.
func NormalizeScore(score int) float64 {
	return 2*float64(score-minScore)/float64(maxScore-minScore) - 1
}

// Weight discounts bills that did not pass.
func Weight(bill store.Bill) float64 {
	switch {
	case bill.Passed:
		return 1.0
	case !bill.DeliberationCompleted:
		return 0.8
	default:
		return 0.6
	}
}

// Encode renders the report as indented JSON followed by a newline. A nil report encodes as [].
func Encode(r Report) ([]byte, error) {
	if r == nil {
		r = Report{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (Report, error) {
	r := Report{}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// Digest is the hex BLAKE2b-256 of encoded report bytes.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
