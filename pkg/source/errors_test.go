package source_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

func TestUnavailable(t *testing.T) {
	cause := errors.New("503 backend error")
	err := source.Unavailable(types.SourceTypeCalendar, cause)

	gt.B(t, errors.Is(err, source.ErrSourceUnavailable)).True()
	gt.B(t, errors.Is(err, cause)).True()
	gt.B(t, errors.Is(err, source.ErrRateLimited)).False()
}

func TestRateLimited(t *testing.T) {
	err := source.RateLimited(types.SourceTypeSlack, 30*time.Second)

	gt.B(t, errors.Is(err, source.ErrRateLimited)).True()
	gt.B(t, errors.Is(err, source.ErrSourceUnavailable)).False()

	retryAfter, ok := source.RetryAfter(err)
	gt.B(t, ok).True()
	gt.Value(t, retryAfter).Equal(30 * time.Second)
}

func TestRetryAfter(t *testing.T) {
	t.Run("no hint on plain error", func(t *testing.T) {
		_, ok := source.RetryAfter(errors.New("boom"))
		gt.B(t, ok).False()
	})

	t.Run("no hint on unavailable error", func(t *testing.T) {
		_, ok := source.RetryAfter(source.Unavailable(types.SourceTypeGitHub, errors.New("boom")))
		gt.B(t, ok).False()
	})
}
