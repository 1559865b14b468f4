package model

import (
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// SourceFailure records a connector failure collected during FETCHING
type SourceFailure struct {
	Source types.SourceType
	Err    error
}

// RunResult summarizes one pipeline run for a user/date
type RunResult struct {
	UserID         string
	Date           BriefingDate
	Stage          types.RunStage
	FailedStage    types.RunStage // stage the run failed in, set when Stage is FAILED
	SourceFailures []SourceFailure
	EventsFetched  int
	EventsInserted int
	EventsUpdated  int
	EventsRanked   int
	Briefing       *Briefing
}

// Failed reports whether the run ended in the terminal FAILED state
func (r *RunResult) Failed() bool {
	return r.Stage == types.RunStageFailed
}
