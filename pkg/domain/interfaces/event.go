package interfaces

import (
	"context"

	"github.com/secmon-lab/orbit/pkg/domain/model"
)

// EventRepository defines the interface for normalized event persistence.
// It is the single deduplication boundary against provider-side retries:
// Upsert keys exclusively on (source, external_id).
type EventRepository interface {
	// Upsert stores events for a user, inserting new keys and replacing
	// existing ones. The write is all-or-nothing per call: on failure the
	// prior state is unchanged and no subset of events is silently dropped.
	Upsert(ctx context.Context, userID string, events []*model.Event) (inserted, updated int, err error)

	// Query retrieves all events for a user on a date, ordered by occurred_at
	Query(ctx context.Context, userID string, date model.BriefingDate) ([]*model.Event, error)
}
