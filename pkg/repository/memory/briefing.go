package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/model"
)

type briefingKey struct {
	userID string
	date   model.BriefingDate
}

type briefingRepository struct {
	mu        sync.RWMutex
	briefings map[briefingKey]*model.Briefing
}

func newBriefingRepository() *briefingRepository {
	return &briefingRepository{
		briefings: make(map[briefingKey]*model.Briefing),
	}
}

// copyBriefing creates a deep copy of a briefing
func copyBriefing(b *model.Briefing) *model.Briefing {
	copied := *b
	copied.ActionItems = append([]string(nil), b.ActionItems...)
	copied.SourceEvents = append([]model.EventKey(nil), b.SourceEvents...)
	return &copied
}

// Put stores a briefing, replacing any prior briefing for the same user/date
func (r *briefingRepository) Put(ctx context.Context, briefing *model.Briefing) (*model.Briefing, error) {
	if err := briefing.Validate(); err != nil {
		return nil, goerr.Wrap(ErrWriteFailed, "invalid briefing", goerr.V("cause", err.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyBriefing(briefing)
	if stored.ID == "" {
		stored.ID = model.NewBriefingID()
	}
	if stored.GeneratedAt.IsZero() {
		stored.GeneratedAt = time.Now().UTC()
	}

	r.briefings[briefingKey{userID: stored.UserID, date: stored.Date}] = stored
	return copyBriefing(stored), nil
}

// Get retrieves the briefing for a user on a date
func (r *briefingRepository) Get(ctx context.Context, userID string, date model.BriefingDate) (*model.Briefing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.briefings[briefingKey{userID: userID, date: date}]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "briefing not found",
			goerr.V("userID", userID),
			goerr.V("date", date))
	}

	return copyBriefing(b), nil
}

// Latest retrieves the most recently generated briefing for a user
func (r *briefingRepository) Latest(ctx context.Context, userID string) (*model.Briefing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.Briefing
	for key, b := range r.briefings {
		if key.userID != userID {
			continue
		}
		if latest == nil || b.GeneratedAt.After(latest.GeneratedAt) {
			latest = b
		}
	}

	if latest == nil {
		return nil, goerr.Wrap(ErrNotFound, "no briefings for user", goerr.V("userID", userID))
	}

	return copyBriefing(latest), nil
}

// List retrieves briefings for a user ordered by date descending
func (r *briefingRepository) List(ctx context.Context, userID string, limit, offset int) ([]*model.Briefing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*model.Briefing
	for key, b := range r.briefings {
		if key.userID == userID {
			all = append(all, b)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Date > all[j].Date
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	result := make([]*model.Briefing, len(all))
	for i, b := range all {
		result[i] = copyBriefing(b)
	}

	return result, nil
}
