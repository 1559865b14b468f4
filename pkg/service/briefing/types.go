package briefing

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/model"
)

// ErrGenerationFailed is returned after model call retries are exhausted.
// The orchestrator decides whether to skip the day; no partial briefing is
// ever returned alongside this error.
var ErrGenerationFailed = goerr.New("briefing generation failed")

// Service generates a briefing artifact from a ranked event set
type Service interface {
	// Generate renders the ranked events into a prompt, invokes the
	// generative model and post-processes the output into a Briefing.
	// An empty ranked set yields a "no notable activity" briefing without
	// a model call.
	Generate(ctx context.Context, userID string, date model.BriefingDate, ranked []*model.RankedEvent) (*model.Briefing, error)
}
