package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
	"github.com/secmon-lab/orbit/pkg/domain/model"
)

// BriefingUseCase exposes read access to generated briefings
type BriefingUseCase struct {
	repo interfaces.Repository
}

// Get retrieves the briefing for a user on a date
func (uc *BriefingUseCase) Get(ctx context.Context, userID string, date model.BriefingDate) (*model.Briefing, error) {
	b, err := uc.repo.Briefing().Get(ctx, userID, date)
	if err != nil {
		return nil, goerr.Wrap(ErrBriefingNotFound, "briefing not found",
			goerr.V(UserIDKey, userID), goerr.V(DateKey, date))
	}
	return b, nil
}

// Latest retrieves the most recently generated briefing for a user
func (uc *BriefingUseCase) Latest(ctx context.Context, userID string) (*model.Briefing, error) {
	b, err := uc.repo.Briefing().Latest(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(ErrBriefingNotFound, "no briefing generated yet",
			goerr.V(UserIDKey, userID))
	}
	return b, nil
}

// List retrieves briefings for a user ordered by date descending
func (uc *BriefingUseCase) List(ctx context.Context, userID string, limit, offset int) ([]*model.Briefing, error) {
	if limit <= 0 {
		limit = 30
	}
	briefings, err := uc.repo.Briefing().List(ctx, userID, limit, offset)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list briefings", goerr.V(UserIDKey, userID))
	}
	return briefings, nil
}
