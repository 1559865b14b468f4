package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/model"
)

type eventRepository struct {
	mu sync.RWMutex
	// events per user, keyed by the natural event key
	events map[string]map[model.EventKey]*model.Event
}

func newEventRepository() *eventRepository {
	return &eventRepository{
		events: make(map[string]map[model.EventKey]*model.Event),
	}
}

// copyEvent creates a deep copy of an event
func copyEvent(ev *model.Event) *model.Event {
	copied := *ev
	return &copied
}

// Upsert stores events keyed on (source, external_id). Validation runs before
// any write so a bad batch leaves prior state unchanged.
func (r *eventRepository) Upsert(ctx context.Context, userID string, events []*model.Event) (int, int, error) {
	if userID == "" {
		return 0, 0, goerr.Wrap(ErrWriteFailed, "user ID is required")
	}

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return 0, 0, goerr.Wrap(ErrWriteFailed, "invalid event in batch",
				goerr.V("userID", userID),
				goerr.V("cause", err.Error()))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.events[userID]
	if !ok {
		bucket = make(map[model.EventKey]*model.Event)
		r.events[userID] = bucket
	}

	var inserted, updated int
	for _, ev := range events {
		key := ev.Key()
		if _, exists := bucket[key]; exists {
			updated++
		} else {
			inserted++
		}
		bucket[key] = copyEvent(ev)
	}

	return inserted, updated, nil
}

// Query retrieves a user's events for a date ordered by occurred_at
func (r *eventRepository) Query(ctx context.Context, userID string, date model.BriefingDate) ([]*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dayStart := date.Time()
	dayEnd := dayStart.Add(24 * time.Hour)

	var events []*model.Event
	for _, ev := range r.events[userID] {
		if ev.OccurredAt.Before(dayStart) || !ev.OccurredAt.Before(dayEnd) {
			continue
		}
		events = append(events, copyEvent(ev))
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].Key().String() < events[j].Key().String()
	})

	return events, nil
}
