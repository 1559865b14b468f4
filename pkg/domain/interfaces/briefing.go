package interfaces

import (
	"context"

	"github.com/secmon-lab/orbit/pkg/domain/model"
)

// BriefingRepository defines the interface for Briefing persistence
type BriefingRepository interface {
	// Put stores a briefing, overwriting any prior briefing for the same
	// user and date
	Put(ctx context.Context, briefing *model.Briefing) (*model.Briefing, error)

	// Get retrieves the briefing for a user on a date
	Get(ctx context.Context, userID string, date model.BriefingDate) (*model.Briefing, error)

	// Latest retrieves the most recently generated briefing for a user
	Latest(ctx context.Context, userID string) (*model.Briefing, error)

	// List retrieves briefings for a user ordered by date descending
	List(ctx context.Context, userID string, limit, offset int) ([]*model.Briefing, error)
}
