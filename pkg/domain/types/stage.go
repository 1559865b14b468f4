package types

import "fmt"

// RunStage represents the state of a per-user pipeline run
type RunStage string

const (
	RunStagePending     RunStage = "PENDING"
	RunStageFetching    RunStage = "FETCHING"
	RunStageAggregating RunStage = "AGGREGATING"
	RunStageGenerating  RunStage = "GENERATING"
	RunStagePersisted   RunStage = "PERSISTED"
	RunStageFailed      RunStage = "FAILED"
)

// AllRunStages returns all valid run stages
func AllRunStages() []RunStage {
	return []RunStage{
		RunStagePending,
		RunStageFetching,
		RunStageAggregating,
		RunStageGenerating,
		RunStagePersisted,
		RunStageFailed,
	}
}

// IsValid checks if the run stage is valid
func (s RunStage) IsValid() bool {
	switch s {
	case RunStagePending,
		RunStageFetching,
		RunStageAggregating,
		RunStageGenerating,
		RunStagePersisted,
		RunStageFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the stage ends a run
func (s RunStage) IsTerminal() bool {
	return s == RunStagePersisted || s == RunStageFailed
}

// String returns the string representation of the run stage
func (s RunStage) String() string {
	return string(s)
}

// ParseRunStage parses a string into a RunStage
func ParseRunStage(s string) (RunStage, error) {
	stage := RunStage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid run stage: %s", s)
	}
	return stage, nil
}
