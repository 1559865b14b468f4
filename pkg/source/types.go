package source

import (
	"context"
	"iter"
	"time"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// Window is the half-open time range [Start, End) of a fetch
type Window struct {
	Start time.Time
	End   time.Time
}

// NewDayWindow returns the window covering a whole briefing date in UTC
func NewDayWindow(date model.BriefingDate) Window {
	start := date.Time()
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Connector fetches raw activity for a user within a time window and
// normalizes it into events. Each concrete source owns its own auth,
// pagination and normalization; the only shared behavior is this contract.
//
// Fetch returns a lazy finite sequence so callers can stop early once a
// result-size ceiling is reached. Normalization is idempotent: overlapping
// windows yield identical (source, external_id) keys for the same underlying
// activity, which makes repository upsert safe under retries.
type Connector interface {
	// Type identifies the source of the connector
	Type() types.SourceType

	// Fetch retrieves normalized events for the user within the window.
	// A provider outage yields ErrSourceUnavailable, a provider rate limit
	// yields ErrRateLimited with a retry-after value.
	Fetch(ctx context.Context, userID string, window Window) iter.Seq2[*model.Event, error]
}

// Drain collects events from a fetch sequence up to max entries. A mid-stream
// error fails the whole fetch: partial results from a broken connector are
// discarded so that a later retry re-fetches them cleanly.
func Drain(seq iter.Seq2[*model.Event, error], max int) ([]*model.Event, error) {
	var events []*model.Event
	for ev, err := range seq {
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		if max > 0 && len(events) >= max {
			break
		}
	}
	return events, nil
}
