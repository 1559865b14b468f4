package types

import "fmt"

// SourceType identifies the connector a normalized event originated from
type SourceType string

const (
	SourceTypeCalendar SourceType = "calendar"
	SourceTypeSlack    SourceType = "slack"
	SourceTypeNotion   SourceType = "notion"
	SourceTypeGitHub   SourceType = "github"
)

// AllSourceTypes returns all valid source types in their canonical order
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeCalendar,
		SourceTypeSlack,
		SourceTypeNotion,
		SourceTypeGitHub,
	}
}

// IsValid checks if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeCalendar,
		SourceTypeSlack,
		SourceTypeNotion,
		SourceTypeGitHub:
		return true
	default:
		return false
	}
}

// Order returns the canonical ordinal of the source type. It is used as the
// final tie-breaker in deduplication so results stay deterministic regardless
// of connector completion order. Unknown types sort last.
func (s SourceType) Order() int {
	for i, st := range AllSourceTypes() {
		if s == st {
			return i
		}
	}
	return len(AllSourceTypes())
}

// String returns the string representation of the source type
func (s SourceType) String() string {
	return string(s)
}

// ParseSourceType parses a string into a SourceType
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid source type: %s", s)
	}
	return st, nil
}
