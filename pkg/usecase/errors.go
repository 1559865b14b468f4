package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrBriefingNotFound = errors.New("briefing not found")
	ErrNoConnectors     = errors.New("no source connectors configured")
	ErrAllSourcesFailed = errors.New("all source fetches failed")
)

// Context keys for error values
const (
	UserIDKey = "user_id"
	DateKey   = "date"
)
