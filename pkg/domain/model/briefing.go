package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// BriefingID is a UUID-based identifier for Briefing
type BriefingID string

// NewBriefingID generates a new UUID v4 BriefingID
func NewBriefingID() BriefingID {
	return BriefingID(uuid.New().String())
}

// BriefingDate is a civil date in "2006-01-02" form. Briefings are unique per
// (user, date); the date is not a timestamp.
type BriefingDate string

const briefingDateLayout = "2006-01-02"

// NewBriefingDate converts a timestamp to its civil date in UTC
func NewBriefingDate(t time.Time) BriefingDate {
	return BriefingDate(t.UTC().Format(briefingDateLayout))
}

// ParseBriefingDate parses a "2006-01-02" string into a BriefingDate
func ParseBriefingDate(s string) (BriefingDate, error) {
	if _, err := time.Parse(briefingDateLayout, s); err != nil {
		return "", goerr.Wrap(err, "invalid briefing date", goerr.V("date", s))
	}
	return BriefingDate(s), nil
}

// Time returns the start of the date in UTC
func (d BriefingDate) Time() time.Time {
	t, _ := time.Parse(briefingDateLayout, string(d))
	return t
}

// String returns the string representation of the briefing date
func (d BriefingDate) String() string {
	return string(d)
}

// Briefing is the generated daily artifact for a user. It is immutable once
// created; regeneration replaces the whole record with a later GeneratedAt.
type Briefing struct {
	ID           BriefingID
	UserID       string
	Date         BriefingDate
	SummaryText  string
	ActionItems  []string
	SourceEvents []EventKey // grounding events by identity only, kept for audit
	GeneratedAt  time.Time
	ModelVersion string
}

// Validate checks that the briefing is complete enough to persist
func (b *Briefing) Validate() error {
	if b.UserID == "" {
		return goerr.New("briefing user ID is required")
	}
	if b.Date == "" {
		return goerr.New("briefing date is required", goerr.V("userID", b.UserID))
	}
	if b.SummaryText == "" {
		return goerr.New("briefing summary is required",
			goerr.V("userID", b.UserID),
			goerr.V("date", b.Date))
	}
	return nil
}
