package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/model/config"
)

// Engine merges events from all connectors for a user/day, deduplicates
// near-identical events, scores them by relevance and truncates the ranked
// set to a context budget. The whole transformation is synchronous and
// deterministic given identical inputs, budget and clock.
type Engine struct {
	cfg *config.BriefingConfig
	now func() time.Time
}

// Option is a functional option for engine configuration
type Option func(*Engine)

// WithClock injects the reference time used for recency scoring. Tests use a
// fixed clock to make scores reproducible.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an aggregation engine with the given tuning configuration
func New(cfg *config.BriefingConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.NewBriefingConfig()
	}

	e := &Engine{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Aggregate deduplicates, scores and ranks events, then truncates the result
// so the cumulative estimated cost stays within contextBudget. Truncation
// drops whole events only. Empty input yields an empty result.
func (e *Engine) Aggregate(events []*model.Event, contextBudget int) []*model.RankedEvent {
	if len(events) == 0 || contextBudget <= 0 {
		return nil
	}

	survivors := e.dedup(events)

	ranked := make([]*model.RankedEvent, 0, len(survivors))
	now := e.now().UTC()
	for _, ev := range survivors {
		ranked = append(ranked, &model.RankedEvent{
			Event:          ev,
			RelevanceScore: e.score(ev, now),
		})
	}

	// Stable sort: score descending, ties by occurred_at descending. The
	// survivor list is already canonically ordered, so full ties stay
	// deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RelevanceScore != ranked[j].RelevanceScore {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		}
		return ranked[i].Event.OccurredAt.After(ranked[j].Event.OccurredAt)
	})

	var result []*model.RankedEvent
	cost := 0
	for _, re := range ranked {
		c := re.Event.EstimatedCost()
		if cost+c > contextBudget {
			break
		}
		cost += c
		re.Rank = len(result) + 1
		result = append(result, re)
	}

	return result
}

// dedupKey groups events that may be duplicates of each other. Duplicates
// require matching category and normalized title regardless of source.
type dedupKey struct {
	category string
	title    string
}

// dedup collapses events with equal category, case-insensitive whitespace
// normalized title, and occurred_at within the configured tolerance. The
// survivor is the one with the higher priority hint, tie-broken by earlier
// occurred_at, then by source enum order.
func (e *Engine) dedup(events []*model.Event) []*model.Event {
	groups := make(map[dedupKey][]*model.Event)
	for _, ev := range events {
		key := dedupKey{
			category: string(ev.Category),
			title:    normalizeTitle(ev.Title),
		}
		groups[key] = append(groups[key], ev)
	}

	var survivors []*model.Event
	for _, group := range groups {
		// Preference order decides which duplicate wins a cluster
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].PriorityHint != group[j].PriorityHint {
				return group[i].PriorityHint > group[j].PriorityHint
			}
			if !group[i].OccurredAt.Equal(group[j].OccurredAt) {
				return group[i].OccurredAt.Before(group[j].OccurredAt)
			}
			return group[i].Source.Order() < group[j].Source.Order()
		})

		var kept []*model.Event
		for _, ev := range group {
			dup := false
			for _, k := range kept {
				if absDuration(ev.OccurredAt.Sub(k.OccurredAt)) <= e.cfg.DedupTolerance {
					dup = true
					break
				}
			}
			if !dup {
				kept = append(kept, ev)
			}
		}
		survivors = append(survivors, kept...)
	}

	// Canonical order so downstream ranking is independent of map iteration
	sort.Slice(survivors, func(i, j int) bool {
		if !survivors[i].OccurredAt.Equal(survivors[j].OccurredAt) {
			return survivors[i].OccurredAt.Before(survivors[j].OccurredAt)
		}
		return survivors[i].Key().String() < survivors[j].Key().String()
	})

	return survivors
}

// score combines category weight, exponential recency decay and the source
// priority hint. All weights come from configuration, not constants.
func (e *Engine) score(ev *model.Event, now time.Time) float64 {
	age := now.Sub(ev.OccurredAt)
	if age < 0 {
		age = 0
	}

	halfLife := e.cfg.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = config.DefaultRecencyHalfLife
	}
	recency := math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())

	return e.cfg.CategoryWeight(ev.Category)*recency + e.cfg.PriorityWeight*float64(ev.PriorityHint)
}

// normalizeTitle lowercases and collapses all whitespace runs to single
// spaces so near-identical titles compare equal
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
