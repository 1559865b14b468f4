package usecase

import (
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
	"github.com/secmon-lab/orbit/pkg/domain/model/config"
	"github.com/secmon-lab/orbit/pkg/service/aggregate"
	"github.com/secmon-lab/orbit/pkg/service/briefing"
	"github.com/secmon-lab/orbit/pkg/source"
)

const (
	defaultFetchTimeout   = 2 * time.Minute
	defaultPerSourceLimit = 200
	defaultMaxGenerations = 2
)

type UseCases struct {
	repo        interfaces.Repository
	briefingCfg *config.BriefingConfig

	Run      *RunUseCase
	Briefing *BriefingUseCase

	fetchTimeout   time.Duration
	perSourceLimit int
	maxGenerations int64
	archiver       Archiver
}

type Option func(*UseCases)

// WithBriefingConfig overrides the aggregation tuning parameters
func WithBriefingConfig(cfg *config.BriefingConfig) Option {
	return func(uc *UseCases) {
		uc.briefingCfg = cfg
	}
}

// WithFetchTimeout bounds the FETCHING phase of a run. Outstanding connector
// fetches are cancelled when it expires; the run proceeds with whatever
// succeeded.
func WithFetchTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.fetchTimeout = d
	}
}

// WithPerSourceLimit caps the number of events drained from one connector
// in a single run
func WithPerSourceLimit(n int) Option {
	return func(uc *UseCases) {
		uc.perSourceLimit = n
	}
}

// WithMaxGenerations bounds concurrent briefing generations across all users
// in this process
func WithMaxGenerations(n int64) Option {
	return func(uc *UseCases) {
		uc.maxGenerations = n
	}
}

// WithArchiver attaches an optional briefing archiver. Archive failures are
// logged but never fail a run.
func WithArchiver(a Archiver) Option {
	return func(uc *UseCases) {
		uc.archiver = a
	}
}

func New(repo interfaces.Repository, connectors []source.Connector, generator briefing.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:           repo,
		briefingCfg:    config.NewBriefingConfig(),
		fetchTimeout:   defaultFetchTimeout,
		perSourceLimit: defaultPerSourceLimit,
		maxGenerations: defaultMaxGenerations,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Run = &RunUseCase{
		repo:           repo,
		connectors:     connectors,
		generator:      generator,
		engine:         aggregate.New(uc.briefingCfg),
		cfg:            uc.briefingCfg,
		fetchTimeout:   uc.fetchTimeout,
		perSourceLimit: uc.perSourceLimit,
		genSem:         semaphore.NewWeighted(uc.maxGenerations),
		archiver:       uc.archiver,
	}
	uc.Briefing = &BriefingUseCase{repo: repo}

	return uc
}
