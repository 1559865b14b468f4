package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/usecase"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
)

// BriefingWorker runs the briefing pipeline for every configured user on a
// fixed interval
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type BriefingWorker struct {
	run      *usecase.RunUseCase
	userIDs  []string
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option is a functional option for worker configuration
type Option func(*BriefingWorker)

// WithClock injects the clock used to pick the briefing date, for tests
func WithClock(now func() time.Time) Option {
	return func(w *BriefingWorker) {
		w.now = now
	}
}

// NewBriefingWorker creates a worker that generates briefings for userIDs
// every interval
func NewBriefingWorker(run *usecase.RunUseCase, userIDs []string, interval time.Duration, opts ...Option) *BriefingWorker {
	w := &BriefingWorker{
		run:      run,
		userIDs:  userIDs,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background generation loop
// - Initial cycle and periodic cycles both run in a background goroutine
// - Does not block startup
func (w *BriefingWorker) Start(ctx context.Context) error {
	logging.Default().Info("briefing worker starting",
		"users", len(w.userIDs),
		"interval", w.interval.String())

	go w.loop(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *BriefingWorker) Stop() {
	logging.Default().Info("briefing worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("briefing worker stopped")
}

// loop is the main worker loop (runs in goroutine)
func (w *BriefingWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	w.cycle(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.cycle(ctx)

		case <-w.stopCh:
			logging.Default().Info("briefing worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("briefing worker context cancelled")
			return
		}
	}
}

// cycle runs the pipeline once for every configured user. One user failing
// does not stop the others; failures are logged and retried next interval.
func (w *BriefingWorker) cycle(ctx context.Context) {
	date := model.NewBriefingDate(w.now())

	for _, userID := range w.userIDs {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.run.Run(ctx, userID, date)
		if err != nil {
			logging.Default().Error("briefing run failed (will retry next interval)",
				"user_id", userID,
				"date", date.String(),
				"failed_stage", result.FailedStage.String(),
				"error", err.Error())
			continue
		}

		logging.Default().Info("briefing generated",
			"user_id", userID,
			"date", date.String(),
			"events_ranked", result.EventsRanked)
	}
}
