package usecase_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/repository/memory"
	"github.com/secmon-lab/orbit/pkg/service/briefing"
	"github.com/secmon-lab/orbit/pkg/source"
	"github.com/secmon-lab/orbit/pkg/usecase"
)

const testUserID = "user-run-test"

func testDate(t *testing.T) model.BriefingDate {
	t.Helper()
	d, err := model.ParseBriefingDate("2026-03-02")
	gt.NoError(t, err).Required()
	return d
}

// ----- mock connector -----

type mockConnector struct {
	typ     types.SourceType
	fetchFn func(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error]
}

func (m *mockConnector) Type() types.SourceType {
	return m.typ
}

func (m *mockConnector) Fetch(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, userID, window)
	}
	return eventSeq()
}

// eventSeq yields the given events then stops
func eventSeq(events ...*model.Event) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// failingSeq yields an error immediately
func failingSeq(err error) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		yield(nil, err)
	}
}

func connectorWith(typ types.SourceType, events ...*model.Event) *mockConnector {
	return &mockConnector{
		typ: typ,
		fetchFn: func(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
			return eventSeq(events...)
		},
	}
}

func failingConnector(typ types.SourceType) *mockConnector {
	return &mockConnector{
		typ: typ,
		fetchFn: func(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
			return failingSeq(source.Unavailable(typ, errors.New("provider down")))
		},
	}
}

// ----- mock generator -----

type mockGenerator struct {
	generateFn func(ctx context.Context, userID string, date model.BriefingDate, ranked []*model.RankedEvent) (*model.Briefing, error)
	calls      int
}

func (m *mockGenerator) Generate(ctx context.Context, userID string, date model.BriefingDate, ranked []*model.RankedEvent) (*model.Briefing, error) {
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(ctx, userID, date, ranked)
	}
	b := &model.Briefing{
		ID:           model.NewBriefingID(),
		UserID:       userID,
		Date:         date,
		SummaryText:  "generated summary",
		GeneratedAt:  time.Now().UTC(),
		ModelVersion: "test-model",
	}
	for _, re := range ranked {
		b.SourceEvents = append(b.SourceEvents, re.Event.Key())
	}
	return b, nil
}

var _ briefing.Service = &mockGenerator{}

func testEvent(st types.SourceType, externalID string, hour int) *model.Event {
	return &model.Event{
		Source:     st,
		ExternalID: externalID,
		OccurredAt: time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC),
		Category:   types.EventCategoryMessage,
		Title:      "event " + externalID,
	}
}

func TestRunPipeline(t *testing.T) {
	t.Run("all sources succeed", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}
		connectors := []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9),
				testEvent(types.SourceTypeCalendar, "cal-2", 14)),
			connectorWith(types.SourceTypeSlack,
				testEvent(types.SourceTypeSlack, "msg-1", 11)),
		}

		uc := usecase.New(repo, connectors, gen)
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()

		gt.Value(t, result.Stage).Equal(types.RunStagePersisted)
		gt.Value(t, result.EventsFetched).Equal(3)
		gt.Value(t, result.EventsInserted).Equal(3)
		gt.Value(t, result.EventsUpdated).Equal(0)
		gt.Value(t, result.EventsRanked).Equal(3)
		gt.Array(t, result.SourceFailures).Length(0)
		gt.Value(t, result.Briefing).NotNil()
		gt.Value(t, gen.calls).Equal(1)

		stored, err := repo.Briefing().Get(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, stored.SummaryText).Equal("generated summary")
		gt.Array(t, stored.SourceEvents).Length(3)
	})

	t.Run("partial source failure still persists", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}
		connectors := []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
			failingConnector(types.SourceTypeSlack),
			failingConnector(types.SourceTypeNotion),
		}

		uc := usecase.New(repo, connectors, gen)
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()

		gt.Value(t, result.Stage).Equal(types.RunStagePersisted)
		gt.Array(t, result.SourceFailures).Length(2)
		gt.Value(t, result.EventsFetched).Equal(1)
		gt.Value(t, result.Briefing).NotNil()
	})

	t.Run("all sources failing aborts in fetching", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}
		connectors := []source.Connector{
			failingConnector(types.SourceTypeCalendar),
			failingConnector(types.SourceTypeSlack),
		}

		uc := usecase.New(repo, connectors, gen)
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrAllSourcesFailed)).True()

		gt.Value(t, result.Stage).Equal(types.RunStageFailed)
		gt.Value(t, result.FailedStage).Equal(types.RunStageFetching)
		gt.Array(t, result.SourceFailures).Length(2)
		gt.Value(t, gen.calls).Equal(0)

		// nothing was persisted
		_, err = repo.Briefing().Get(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)
	})

	t.Run("generation failure aborts without persisting", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{
			generateFn: func(ctx context.Context, userID string, date model.BriefingDate, ranked []*model.RankedEvent) (*model.Briefing, error) {
				return nil, briefing.ErrGenerationFailed
			},
		}
		connectors := []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
		}

		uc := usecase.New(repo, connectors, gen)
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, briefing.ErrGenerationFailed)).True()

		gt.Value(t, result.Stage).Equal(types.RunStageFailed)
		gt.Value(t, result.FailedStage).Equal(types.RunStageGenerating)

		_, err = repo.Briefing().Get(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)

		// events fetched before the failure stay stored for the next run
		events, err := repo.Event().Query(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Array(t, events).Length(1)
	})

	t.Run("rerun is idempotent and overwrites the briefing", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}
		connectors := []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9),
				testEvent(types.SourceTypeCalendar, "cal-2", 14)),
		}

		uc := usecase.New(repo, connectors, gen)
		first, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, first.EventsInserted).Equal(2)

		second, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, second.EventsInserted).Equal(0)
		gt.Value(t, second.EventsUpdated).Equal(2)
		gt.Value(t, second.Stage).Equal(types.RunStagePersisted)

		// only one briefing exists for the date
		briefings, err := repo.Briefing().List(context.Background(), testUserID, 10, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, briefings).Length(1)
		gt.Value(t, briefings[0].ID).Equal(second.Briefing.ID)
	})

	t.Run("rerun aggregates over stored history", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}
		date := testDate(t)

		// first run: only calendar is up
		uc1 := usecase.New(repo, []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
			failingConnector(types.SourceTypeSlack),
		}, gen)
		result, err := uc1.Run.Run(context.Background(), testUserID, date)
		gt.NoError(t, err).Required()
		gt.Value(t, result.EventsRanked).Equal(1)

		// second run: slack recovered but calendar is now empty; ranking
		// still sees the stored calendar event
		uc2 := usecase.New(repo, []source.Connector{
			connectorWith(types.SourceTypeCalendar),
			connectorWith(types.SourceTypeSlack,
				testEvent(types.SourceTypeSlack, "msg-1", 11)),
		}, gen)
		result, err = uc2.Run.Run(context.Background(), testUserID, date)
		gt.NoError(t, err).Required()
		gt.Value(t, result.EventsRanked).Equal(2)
	})

	t.Run("per-source limit caps drained events", func(t *testing.T) {
		repo := memory.New()
		gen := &mockGenerator{}

		events := make([]*model.Event, 10)
		for i := range events {
			events[i] = &model.Event{
				Source:     types.SourceTypeSlack,
				ExternalID: string(rune('a' + i)),
				OccurredAt: time.Date(2026, 3, 2, 10, i, 0, 0, time.UTC),
				Category:   types.EventCategoryMessage,
				Title:      "message " + string(rune('a'+i)),
			}
		}
		connectors := []source.Connector{
			connectorWith(types.SourceTypeSlack, events...),
		}

		uc := usecase.New(repo, connectors, gen, usecase.WithPerSourceLimit(3))
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, result.EventsFetched).Equal(3)
	})

	t.Run("no connectors configured", func(t *testing.T) {
		uc := usecase.New(memory.New(), nil, &mockGenerator{})
		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrNoConnectors)).True()
		gt.Value(t, result.Stage).Equal(types.RunStageFailed)
		gt.Value(t, result.FailedStage).Equal(types.RunStagePending)
	})

	t.Run("empty user ID is rejected", func(t *testing.T) {
		uc := usecase.New(memory.New(), []source.Connector{
			connectorWith(types.SourceTypeCalendar),
		}, &mockGenerator{})
		_, err := uc.Run.Run(context.Background(), "", testDate(t))
		gt.Error(t, err)
	})
}

// ----- archiver -----

type mockArchiver struct {
	archiveFn func(ctx context.Context, b *model.Briefing) error
	calls     int
}

func (m *mockArchiver) Archive(ctx context.Context, b *model.Briefing) error {
	m.calls++
	if m.archiveFn != nil {
		return m.archiveFn(ctx, b)
	}
	return nil
}

func TestRunArchive(t *testing.T) {
	t.Run("persisted briefing is archived", func(t *testing.T) {
		arch := &mockArchiver{}
		uc := usecase.New(memory.New(), []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
		}, &mockGenerator{}, usecase.WithArchiver(arch))

		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, result.Stage).Equal(types.RunStagePersisted)
		gt.Value(t, arch.calls).Equal(1)
	})

	t.Run("archive failure does not fail the run", func(t *testing.T) {
		arch := &mockArchiver{
			archiveFn: func(ctx context.Context, b *model.Briefing) error {
				return errors.New("bucket unavailable")
			},
		}
		uc := usecase.New(memory.New(), []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
		}, &mockGenerator{}, usecase.WithArchiver(arch))

		result, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, result.Stage).Equal(types.RunStagePersisted)
	})
}

func TestBriefingUseCase(t *testing.T) {
	setup := func(t *testing.T) (*usecase.UseCases, *memory.Memory) {
		t.Helper()
		repo := memory.New()
		uc := usecase.New(repo, []source.Connector{
			connectorWith(types.SourceTypeCalendar,
				testEvent(types.SourceTypeCalendar, "cal-1", 9)),
		}, &mockGenerator{})
		return uc, repo
	}

	t.Run("get after run", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Run.Run(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()

		b, err := uc.Briefing.Get(context.Background(), testUserID, testDate(t))
		gt.NoError(t, err).Required()
		gt.Value(t, b.UserID).Equal(testUserID)
	})

	t.Run("get missing briefing", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Briefing.Get(context.Background(), testUserID, testDate(t))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrBriefingNotFound)).True()
	})

	t.Run("latest returns the newest briefing", func(t *testing.T) {
		uc, repo := setup(t)

		for _, ds := range []string{"2026-03-01", "2026-03-02"} {
			d, err := model.ParseBriefingDate(ds)
			gt.NoError(t, err).Required()
			_, err = repo.Briefing().Put(context.Background(), &model.Briefing{
				UserID:      testUserID,
				Date:        d,
				SummaryText: "briefing " + ds,
			})
			gt.NoError(t, err).Required()
		}

		latest, err := uc.Briefing.Latest(context.Background(), testUserID)
		gt.NoError(t, err).Required()
		gt.Value(t, latest.Date.String()).Equal("2026-03-02")
	})

	t.Run("latest with no briefings", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Briefing.Latest(context.Background(), testUserID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrBriefingNotFound)).True()
	})

	t.Run("list pages by date descending", func(t *testing.T) {
		uc, repo := setup(t)

		for _, ds := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
			d, err := model.ParseBriefingDate(ds)
			gt.NoError(t, err).Required()
			_, err = repo.Briefing().Put(context.Background(), &model.Briefing{
				UserID:      testUserID,
				Date:        d,
				SummaryText: "briefing " + ds,
			})
			gt.NoError(t, err).Required()
		}

		page, err := uc.Briefing.List(context.Background(), testUserID, 2, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, page).Length(2)
		gt.Value(t, page[0].Date.String()).Equal("2026-03-03")

		rest, err := uc.Briefing.List(context.Background(), testUserID, 2, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, rest).Length(1)
		gt.Value(t, rest[0].Date.String()).Equal("2026-03-01")
	})
}
