package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/model/config"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/service/aggregate"
	"github.com/secmon-lab/orbit/pkg/service/briefing"
	"github.com/secmon-lab/orbit/pkg/source"
	"github.com/secmon-lab/orbit/pkg/utils/errutil"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
)

// Archiver exports a persisted briefing to external storage for audit.
// Archive failures never fail a run.
type Archiver interface {
	Archive(ctx context.Context, b *model.Briefing) error
}

// RunUseCase drives one briefing pipeline run for a user/date through the
// fetch, aggregate, generate and persist stages
type RunUseCase struct {
	repo           interfaces.Repository
	connectors     []source.Connector
	generator      briefing.Service
	engine         *aggregate.Engine
	cfg            *config.BriefingConfig
	fetchTimeout   time.Duration
	perSourceLimit int
	genSem         *semaphore.Weighted
	archiver       Archiver
}

// Run executes the pipeline for one user and date. The returned RunResult
// always reflects the stage reached, also on failure; the error carries the
// cause. A rerun for the same user/date is idempotent: events upsert on their
// natural key and the new briefing replaces the old one.
func (uc *RunUseCase) Run(ctx context.Context, userID string, date model.BriefingDate) (*model.RunResult, error) {
	result := &model.RunResult{
		UserID: userID,
		Date:   date,
		Stage:  types.RunStagePending,
	}

	if userID == "" {
		return uc.fail(result, types.RunStagePending, goerr.New("user ID is required"))
	}
	if len(uc.connectors) == 0 {
		return uc.fail(result, types.RunStagePending,
			goerr.Wrap(ErrNoConnectors, "cannot run pipeline", goerr.V(UserIDKey, userID)))
	}

	logger := logging.From(ctx).With("user_id", userID, "date", date.String())

	// FETCHING
	result.Stage = types.RunStageFetching
	fetched, failures := uc.fetchAll(ctx, userID, date)
	result.SourceFailures = failures
	result.EventsFetched = len(fetched)

	for _, f := range failures {
		logger.Warn("source fetch failed",
			"source", f.Source.String(),
			"error", f.Err.Error())
	}
	if len(failures) == len(uc.connectors) {
		return uc.fail(result, types.RunStageFetching,
			goerr.Wrap(ErrAllSourcesFailed, "no source produced events",
				goerr.V(UserIDKey, userID), goerr.V(DateKey, date)))
	}

	if len(fetched) > 0 {
		inserted, updated, err := uc.repo.Event().Upsert(ctx, userID, fetched)
		if err != nil {
			return uc.fail(result, types.RunStageFetching,
				goerr.Wrap(err, "failed to store fetched events", goerr.V(UserIDKey, userID)))
		}
		result.EventsInserted = inserted
		result.EventsUpdated = updated
	}

	// AGGREGATING: rank over everything stored for the day, not just this
	// run's fetches, so a rerun after a source recovers sees full history
	result.Stage = types.RunStageAggregating
	stored, err := uc.repo.Event().Query(ctx, userID, date)
	if err != nil {
		return uc.fail(result, types.RunStageAggregating,
			goerr.Wrap(err, "failed to load events for aggregation", goerr.V(UserIDKey, userID)))
	}
	ranked := uc.engine.Aggregate(stored, uc.cfg.ContextBudget)
	result.EventsRanked = len(ranked)

	// GENERATING
	result.Stage = types.RunStageGenerating
	if err := uc.genSem.Acquire(ctx, 1); err != nil {
		return uc.fail(result, types.RunStageGenerating,
			goerr.Wrap(err, "cancelled while waiting for generation slot"))
	}
	b, err := uc.generator.Generate(ctx, userID, date, ranked)
	uc.genSem.Release(1)
	if err != nil {
		return uc.fail(result, types.RunStageGenerating,
			goerr.Wrap(err, "briefing generation failed", goerr.V(UserIDKey, userID)))
	}

	stored2, err := uc.repo.Briefing().Put(ctx, b)
	if err != nil {
		return uc.fail(result, types.RunStageGenerating,
			goerr.Wrap(err, "failed to persist briefing", goerr.V(UserIDKey, userID)))
	}

	// PERSISTED
	result.Stage = types.RunStagePersisted
	result.Briefing = stored2

	if uc.archiver != nil {
		if err := uc.archiver.Archive(ctx, stored2); err != nil {
			errutil.Handle(ctx, err, "failed to archive briefing")
		}
	}

	logger.Info("briefing run completed",
		"events_fetched", result.EventsFetched,
		"events_inserted", result.EventsInserted,
		"events_updated", result.EventsUpdated,
		"events_ranked", result.EventsRanked,
		"source_failures", len(failures))

	return result, nil
}

// fetchAll fans out over all connectors and collects per-source results. One
// source failing does not abort the others; the caller decides what a run
// with partial results means.
func (uc *RunUseCase) fetchAll(ctx context.Context, userID string, date model.BriefingDate) ([]*model.Event, []model.SourceFailure) {
	fetchCtx := ctx
	if uc.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, uc.fetchTimeout)
		defer cancel()
	}

	window := source.NewDayWindow(date)

	var (
		mu       sync.Mutex
		events   []*model.Event
		failures []model.SourceFailure
	)

	eg, egCtx := errgroup.WithContext(fetchCtx)
	for _, conn := range uc.connectors {
		eg.Go(func() error {
			evs, err := source.Drain(conn.Fetch(egCtx, userID, window), uc.perSourceLimit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, model.SourceFailure{
					Source: conn.Type(),
					Err:    err,
				})
				return nil
			}
			events = append(events, evs...)
			return nil
		})
	}
	_ = eg.Wait() // goroutines only report via the shared slices

	return events, failures
}

// fail marks the run as terminally failed in the given stage
func (uc *RunUseCase) fail(result *model.RunResult, stage types.RunStage, err error) (*model.RunResult, error) {
	result.Stage = types.RunStageFailed
	result.FailedStage = stage
	return result, err
}
