package source

import (
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// Sentinel errors of the connector layer. Connectors wrap these with goerr so
// callers can match them with errors.Is while keeping the source identifier
// and retry hints as structured values.
var (
	ErrSourceUnavailable = goerr.New("source unavailable")
	ErrRateLimited       = goerr.New("source rate limited")
)

// Keys for goerr values attached to connector errors
const (
	SourceKey     = "source"
	RetryAfterKey = "retry_after"
)

// Unavailable wraps a provider failure as ErrSourceUnavailable for the source
func Unavailable(st types.SourceType, cause error) error {
	return goerr.Wrap(errors.Join(ErrSourceUnavailable, cause),
		"failed to fetch from source",
		goerr.V(SourceKey, st.String()))
}

// RateLimited wraps a provider rate-limit response as ErrRateLimited
func RateLimited(st types.SourceType, retryAfter time.Duration) error {
	return goerr.Wrap(ErrRateLimited, "source requested backoff",
		goerr.V(SourceKey, st.String()),
		goerr.V(RetryAfterKey, retryAfter))
}

// RetryAfter extracts the retry-after hint from a rate-limit error
func RetryAfter(err error) (time.Duration, bool) {
	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return 0, false
	}
	if v, ok := ge.Values()[RetryAfterKey]; ok {
		if d, ok := v.(time.Duration); ok {
			return d, true
		}
	}
	return 0, false
}
