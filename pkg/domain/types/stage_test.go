package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/types"
)

func TestRunStage_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		stage types.RunStage
		want  bool
	}{
		{
			name:  "valid pending",
			stage: types.RunStagePending,
			want:  true,
		},
		{
			name:  "valid fetching",
			stage: types.RunStageFetching,
			want:  true,
		},
		{
			name:  "valid aggregating",
			stage: types.RunStageAggregating,
			want:  true,
		},
		{
			name:  "valid generating",
			stage: types.RunStageGenerating,
			want:  true,
		},
		{
			name:  "valid persisted",
			stage: types.RunStagePersisted,
			want:  true,
		},
		{
			name:  "valid failed",
			stage: types.RunStageFailed,
			want:  true,
		},
		{
			name:  "invalid stage",
			stage: types.RunStage("RUNNING"),
			want:  false,
		},
		{
			name:  "empty stage",
			stage: types.RunStage(""),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.stage.IsValid()).True()
			} else {
				gt.B(t, tt.stage.IsValid()).False()
			}
		})
	}
}

func TestRunStage_IsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		stage types.RunStage
		want  bool
	}{
		{
			name:  "persisted is terminal",
			stage: types.RunStagePersisted,
			want:  true,
		},
		{
			name:  "failed is terminal",
			stage: types.RunStageFailed,
			want:  true,
		},
		{
			name:  "pending is not terminal",
			stage: types.RunStagePending,
			want:  false,
		},
		{
			name:  "fetching is not terminal",
			stage: types.RunStageFetching,
			want:  false,
		},
		{
			name:  "aggregating is not terminal",
			stage: types.RunStageAggregating,
			want:  false,
		},
		{
			name:  "generating is not terminal",
			stage: types.RunStageGenerating,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.stage.IsTerminal()).True()
			} else {
				gt.B(t, tt.stage.IsTerminal()).False()
			}
		})
	}
}

func TestParseRunStage(t *testing.T) {
	stage, err := types.ParseRunStage("PERSISTED")
	gt.NoError(t, err)
	gt.Value(t, stage).Equal(types.RunStagePersisted)

	_, err = types.ParseRunStage("RUNNING")
	gt.Error(t, err)
}

func TestAllRunStages(t *testing.T) {
	stages := types.AllRunStages()
	gt.A(t, stages).Length(6)

	seen := map[types.RunStage]bool{}
	for _, stage := range stages {
		gt.B(t, stage.IsValid()).True()
		gt.B(t, seen[stage]).False()
		seen[stage] = true
	}
}
