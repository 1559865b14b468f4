package briefing

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second

	// noActivitySummary is used when the ranked set is empty; no model call
	// is made so the result is deterministic
	noActivitySummary = "No notable activity was recorded for this day."
)

// service implements Service
type service struct {
	llmClient    gollem.LLMClient
	modelVersion string
	maxAttempts  int
	backoffBase  time.Duration
	now          func() time.Time
}

// Option is a functional option for service configuration
type Option func(*service)

// WithMaxAttempts bounds model call retries
func WithMaxAttempts(n int) Option {
	return func(s *service) {
		s.maxAttempts = n
	}
}

// WithBackoffBase sets the initial retry backoff interval
func WithBackoffBase(d time.Duration) Option {
	return func(s *service) {
		s.backoffBase = d
	}
}

// WithClock injects the clock used for GeneratedAt, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a briefing generation service with the provided LLM client.
// modelVersion is recorded on every generated briefing for auditability.
func New(llmClient gollem.LLMClient, modelVersion string, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	s := &service{
		llmClient:    llmClient,
		modelVersion: modelVersion,
		maxAttempts:  defaultMaxAttempts,
		backoffBase:  defaultBackoffBase,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Generate renders the prompt, calls the model with bounded retries and
// post-processes the output into a Briefing
func (s *service) Generate(ctx context.Context, userID string, date model.BriefingDate, ranked []*model.RankedEvent) (*model.Briefing, error) {
	b := &model.Briefing{
		ID:           model.NewBriefingID(),
		UserID:       userID,
		Date:         date,
		GeneratedAt:  s.now().UTC(),
		ModelVersion: s.modelVersion,
	}
	for _, re := range ranked {
		b.SourceEvents = append(b.SourceEvents, re.Event.Key())
	}

	if len(ranked) == 0 {
		b.SummaryText = noActivitySummary
		return b, nil
	}

	prompt := renderPrompt(date, ranked)

	text, err := s.generateText(ctx, prompt)
	if err != nil {
		return nil, goerr.Wrap(ErrGenerationFailed, "model call retries exhausted",
			goerr.V("userID", userID),
			goerr.V("date", date),
			goerr.V("attempts", s.maxAttempts),
			goerr.V("cause", err.Error()))
	}

	b.SummaryText, b.ActionItems = parseOutput(text)
	return b, nil
}

// generateText invokes the model with exponential backoff. The model is an
// external collaborator: slow, flaky, sometimes malformed; only transport
// failures are retried here, malformed output is the parser's problem.
func (s *service) generateText(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := s.backoffBase

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		session, err := s.llmClient.NewSession(ctx,
			gollem.WithSessionSystemPrompt(systemPrompt()),
		)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
		if err != nil {
			lastErr = err
			logging.From(ctx).Warn("model call failed, retrying",
				"attempt", attempt,
				"error", err.Error())
			continue
		}

		if len(resp.Texts) == 0 || resp.Texts[0] == "" {
			lastErr = goerr.New("model returned empty response")
			continue
		}

		return resp.Texts[0], nil
	}

	return "", lastErr
}
