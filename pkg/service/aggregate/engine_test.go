package aggregate_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/model/config"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/service/aggregate"
)

var testNow = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

func newEngine(cfg *config.BriefingConfig) *aggregate.Engine {
	return aggregate.New(cfg, aggregate.WithClock(func() time.Time { return testNow }))
}

func event(st types.SourceType, id string, cat types.EventCategory, title string, at time.Time, priority int) *model.Event {
	return &model.Event{
		Source:       st,
		ExternalID:   id,
		OccurredAt:   at,
		Category:     cat,
		Title:        title,
		PriorityHint: priority,
	}
}

func TestAggregate(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("empty input yields empty result", func(t *testing.T) {
		e := newEngine(nil)
		gt.Array(t, e.Aggregate(nil, 8000)).Length(0)
	})

	t.Run("zero budget yields empty result", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMessage, "hello", day.Add(9*time.Hour), 0),
		}
		gt.Array(t, e.Aggregate(events, 0)).Length(0)
	})

	t.Run("ranks assigned contiguously from 1", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMessage, "one", day.Add(9*time.Hour), 0),
			event(types.SourceTypeSlack, "b", types.EventCategoryMessage, "two", day.Add(10*time.Hour), 0),
			event(types.SourceTypeSlack, "c", types.EventCategoryMessage, "three", day.Add(11*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(3)
		for i, re := range ranked {
			gt.Value(t, re.Rank).Equal(i + 1)
		}
	})

	t.Run("near-duplicates with same category and title collapse", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMessage, "Deploy done", day.Add(9*time.Hour), 0),
			event(types.SourceTypeNotion, "b", types.EventCategoryMessage, "deploy  DONE", day.Add(9*time.Hour+2*time.Minute), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(1)
	})

	t.Run("duplicate survivor prefers higher priority", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "low", types.EventCategoryMessage, "standup", day.Add(9*time.Hour), 0),
			event(types.SourceTypeNotion, "high", types.EventCategoryMessage, "standup", day.Add(9*time.Hour+time.Minute), 1),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(1)
		gt.Value(t, ranked[0].Event.ExternalID).Equal("high")
	})

	t.Run("equal priority survivor is the earlier event", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeNotion, "later", types.EventCategoryMessage, "standup", day.Add(9*time.Hour+3*time.Minute), 0),
			event(types.SourceTypeSlack, "earlier", types.EventCategoryMessage, "standup", day.Add(9*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(1)
		gt.Value(t, ranked[0].Event.ExternalID).Equal("earlier")
	})

	t.Run("events outside tolerance both survive", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMeeting, "standup", day.Add(9*time.Hour), 0),
			event(types.SourceTypeSlack, "b", types.EventCategoryMeeting, "standup", day.Add(15*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(2)
	})

	t.Run("category-differing near-duplicates both survive", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeCalendar, "cal", types.EventCategoryMeeting, "Standup", day.Add(9*time.Hour), 1),
			event(types.SourceTypeSlack, "msg", types.EventCategoryMessage, "standup starting", day.Add(9*time.Hour+2*time.Minute), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(2)
		// meeting outweighs message with default category weights
		gt.Value(t, ranked[0].Event.Category).Equal(types.EventCategoryMeeting)
	})

	t.Run("budget truncation drops whole events", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMessage, "first", day.Add(9*time.Hour), 0),
			event(types.SourceTypeSlack, "b", types.EventCategoryMessage, "second", day.Add(10*time.Hour), 0),
			event(types.SourceTypeSlack, "c", types.EventCategoryMessage, "third", day.Add(11*time.Hour), 0),
		}

		budget := events[0].EstimatedCost() + events[1].EstimatedCost()
		ranked := e.Aggregate(events, budget)
		gt.Array(t, ranked).Length(2)

		total := 0
		for _, re := range ranked {
			total += re.Event.EstimatedCost()
		}
		gt.Bool(t, total <= budget).True()
	})

	t.Run("recency decay favors newer events", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "old", types.EventCategoryMessage, "morning note", day.Add(6*time.Hour), 0),
			event(types.SourceTypeSlack, "new", types.EventCategoryMessage, "evening note", day.Add(19*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(2)
		gt.Value(t, ranked[0].Event.ExternalID).Equal("new")
		gt.Bool(t, ranked[0].RelevanceScore > ranked[1].RelevanceScore).True()
	})

	t.Run("priority hint lifts score", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "plain", types.EventCategoryMessage, "plain note", day.Add(12*time.Hour), 0),
			event(types.SourceTypeSlack, "urgent", types.EventCategoryMessage, "urgent note", day.Add(12*time.Hour), 1),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(2)
		gt.Value(t, ranked[0].Event.ExternalID).Equal("urgent")
	})

	t.Run("custom category weights are honored", func(t *testing.T) {
		cfg := config.NewBriefingConfig()
		cfg.CategoryWeights[types.EventCategoryMessage] = 2.0
		cfg.CategoryWeights[types.EventCategoryMeeting] = 0.1
		e := newEngine(cfg)

		events := []*model.Event{
			event(types.SourceTypeCalendar, "meet", types.EventCategoryMeeting, "sync", day.Add(12*time.Hour), 0),
			event(types.SourceTypeSlack, "msg", types.EventCategoryMessage, "ping", day.Add(12*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Value(t, ranked[0].Event.ExternalID).Equal("msg")
	})

	t.Run("identical inputs give identical output", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeSlack, "a", types.EventCategoryMessage, "alpha", day.Add(9*time.Hour), 0),
			event(types.SourceTypeNotion, "b", types.EventCategoryTask, "beta", day.Add(10*time.Hour), 1),
			event(types.SourceTypeCalendar, "c", types.EventCategoryMeeting, "gamma", day.Add(11*time.Hour), 0),
			event(types.SourceTypeGitHub, "d", types.EventCategoryDeployment, "delta", day.Add(12*time.Hour), 0),
		}

		first := e.Aggregate(events, 8000)
		for range 10 {
			again := e.Aggregate(events, 8000)
			gt.Array(t, again).Length(len(first))
			for i := range first {
				gt.Value(t, again[i].Event.Key()).Equal(first[i].Event.Key())
				gt.Value(t, again[i].RelevanceScore).Equal(first[i].RelevanceScore)
				gt.Value(t, again[i].Rank).Equal(first[i].Rank)
			}
		}
	})

	t.Run("cross-source duplicate tie breaks by source order", func(t *testing.T) {
		e := newEngine(nil)
		events := []*model.Event{
			event(types.SourceTypeGitHub, "gh", types.EventCategoryTask, "fix login bug", day.Add(9*time.Hour), 0),
			event(types.SourceTypeNotion, "nt", types.EventCategoryTask, "fix login bug", day.Add(9*time.Hour), 0),
		}

		ranked := e.Aggregate(events, 8000)
		gt.Array(t, ranked).Length(1)
		// notion precedes github in source order
		gt.Value(t, ranked[0].Event.Source).Equal(types.SourceTypeNotion)
	})
}
