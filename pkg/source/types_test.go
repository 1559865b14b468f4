package source_test

import (
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

func TestNewDayWindow(t *testing.T) {
	window := source.NewDayWindow(model.BriefingDate("2026-03-02"))
	gt.Value(t, window.Start).Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	gt.Value(t, window.End).Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
}

func TestWindow_Contains(t *testing.T) {
	window := source.NewDayWindow(model.BriefingDate("2026-03-02"))

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{
			name: "start of day is inside",
			at:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "midday is inside",
			at:   time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "end boundary is outside",
			at:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "previous day is outside",
			at:   time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, window.Contains(tt.at)).True()
			} else {
				gt.B(t, window.Contains(tt.at)).False()
			}
		})
	}
}

func eventSeq(events ...*model.Event) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func seqEvent(id string) *model.Event {
	return &model.Event{
		Source:     types.SourceTypeSlack,
		ExternalID: id,
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Category:   types.EventCategoryMessage,
		Title:      "message " + id,
	}
}

func TestDrain(t *testing.T) {
	t.Run("collects all events", func(t *testing.T) {
		events, err := source.Drain(eventSeq(seqEvent("a"), seqEvent("b"), seqEvent("c")), 0)
		gt.NoError(t, err)
		gt.A(t, events).Length(3)
	})

	t.Run("stops at max", func(t *testing.T) {
		events, err := source.Drain(eventSeq(seqEvent("a"), seqEvent("b"), seqEvent("c")), 2)
		gt.NoError(t, err)
		gt.A(t, events).Length(2)
		gt.Value(t, events[0].ExternalID).Equal("a")
		gt.Value(t, events[1].ExternalID).Equal("b")
	})

	t.Run("mid-stream error discards partial results", func(t *testing.T) {
		broken := func(yield func(*model.Event, error) bool) {
			if !yield(seqEvent("a"), nil) {
				return
			}
			yield(nil, errors.New("connection reset"))
		}
		events, err := source.Drain(broken, 0)
		gt.Error(t, err)
		gt.A(t, events).Length(0)
	})

	t.Run("empty sequence", func(t *testing.T) {
		events, err := source.Drain(eventSeq(), 10)
		gt.NoError(t, err)
		gt.A(t, events).Length(0)
	})
}
