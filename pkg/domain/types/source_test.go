package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/types"
)

func TestSourceType_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		source types.SourceType
		want   bool
	}{
		{
			name:   "valid calendar",
			source: types.SourceTypeCalendar,
			want:   true,
		},
		{
			name:   "valid slack",
			source: types.SourceTypeSlack,
			want:   true,
		},
		{
			name:   "valid notion",
			source: types.SourceTypeNotion,
			want:   true,
		},
		{
			name:   "valid github",
			source: types.SourceTypeGitHub,
			want:   true,
		},
		{
			name:   "invalid source",
			source: types.SourceType("jira"),
			want:   false,
		},
		{
			name:   "empty source",
			source: types.SourceType(""),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.source.IsValid()).True()
			} else {
				gt.B(t, tt.source.IsValid()).False()
			}
		})
	}
}

func TestSourceType_Order(t *testing.T) {
	// the ordinal must follow the canonical enumeration
	for i, st := range types.AllSourceTypes() {
		gt.Value(t, st.Order()).Equal(i)
	}

	// unknown sources sort after all known ones
	unknown := types.SourceType("jira")
	gt.Value(t, unknown.Order()).Equal(len(types.AllSourceTypes()))
}

func TestParseSourceType(t *testing.T) {
	st, err := types.ParseSourceType("slack")
	gt.NoError(t, err)
	gt.Value(t, st).Equal(types.SourceTypeSlack)

	_, err = types.ParseSourceType("jira")
	gt.Error(t, err)
}

func TestAllSourceTypes(t *testing.T) {
	sources := types.AllSourceTypes()
	gt.A(t, sources).Length(4)

	seen := map[types.SourceType]bool{}
	for _, st := range sources {
		gt.B(t, st.IsValid()).True()
		gt.B(t, seen[st]).False()
		seen[st] = true
	}
}
