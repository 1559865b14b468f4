package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// EventKey is the natural key of a normalized event. It is globally unique:
// re-ingestion of the same provider record always yields the same key, which
// makes upsert the single deduplication boundary against retried fetches.
type EventKey struct {
	Source     types.SourceType
	ExternalID string
}

// String returns "source/external_id" for logging and audit references
func (k EventKey) String() string {
	return string(k.Source) + "/" + k.ExternalID
}

// Event is a normalized activity record produced by a source connector
type Event struct {
	Source       types.SourceType
	ExternalID   string
	OccurredAt   time.Time
	Category     types.EventCategory
	Title        string
	Body         string
	PriorityHint int // optional urgency signal from the source, 0 = none
	RawRef       string
}

// Key returns the natural key of the event
func (e *Event) Key() EventKey {
	return EventKey{Source: e.Source, ExternalID: e.ExternalID}
}

// Validate checks that the event carries the fields required for ingestion
func (e *Event) Validate() error {
	if !e.Source.IsValid() {
		return goerr.New("invalid event source", goerr.V("source", e.Source))
	}
	if e.ExternalID == "" {
		return goerr.New("event external ID is required", goerr.V("source", e.Source))
	}
	if e.OccurredAt.IsZero() {
		return goerr.New("event occurred_at is required", goerr.V("key", e.Key().String()))
	}
	if !e.Category.IsValid() {
		return goerr.New("invalid event category",
			goerr.V("key", e.Key().String()),
			goerr.V("category", e.Category))
	}
	if e.Title == "" {
		return goerr.New("event title is required", goerr.V("key", e.Key().String()))
	}
	return nil
}

// EstimatedCost approximates the prompt footprint of the event in characters.
// The aggregation engine uses it for budget truncation; it only needs to be
// stable, not exact.
func (e *Event) EstimatedCost() int {
	return len(e.Title) + len(e.Body) + 32
}

// RankedEvent is an event with its computed relevance, derived per pipeline
// run and never persisted
type RankedEvent struct {
	Event          *Event
	RelevanceScore float64
	Rank           int // 1 = most relevant
}
