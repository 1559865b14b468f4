package calendar

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

const pageSize = 100

// defaultRate paces calendar API calls well below the per-user quota
var defaultRate = rate.Limit(5)

// client implements source.Connector for Google Calendar. The user ID is the
// calendar ID (the user's email under domain-wide delegation).
type client struct {
	svc     *gcal.Service
	limiter *rate.Limiter
}

// Option is a functional option for client configuration
type Option func(*client)

// WithRateLimit overrides the default API pacing
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// New creates a Google Calendar connector from service account credentials
func New(ctx context.Context, credentialsJSON []byte, opts ...Option) (source.Connector, error) {
	if len(credentialsJSON) == 0 {
		return nil, goerr.New("Google credentials are required")
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gcal.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create calendar service")
	}

	c := &client{
		svc:     svc,
		limiter: rate.NewLimiter(defaultRate, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Type identifies the connector source
func (c *client) Type() types.SourceType {
	return types.SourceTypeCalendar
}

// Fetch retrieves calendar events within the window as normalized events
func (c *client) Fetch(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		var pageToken string

		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(nil, source.Unavailable(c.Type(), err))
				return
			}

			resp, err := c.svc.Events.List(userID).
				TimeMin(window.Start.Format(time.RFC3339)).
				TimeMax(window.End.Format(time.RFC3339)).
				SingleEvents(true).
				OrderBy("startTime").
				MaxResults(pageSize).
				PageToken(pageToken).
				Context(ctx).
				Do()
			if err != nil {
				yield(nil, convertError(c.Type(), err))
				return
			}

			for _, item := range resp.Items {
				ev := normalize(item)
				if ev == nil {
					continue
				}
				if !window.Contains(ev.OccurredAt) {
					continue
				}
				if !yield(ev, nil) {
					return
				}
			}

			if resp.NextPageToken == "" {
				return
			}
			pageToken = resp.NextPageToken
		}
	}
}

// normalize converts a provider event to the common model. The provider event
// ID is stable across fetches, which keeps the (source, external_id) key
// identical for overlapping windows.
func normalize(item *gcal.Event) *model.Event {
	if item == nil || item.Status == "cancelled" {
		return nil
	}

	start := eventStart(item)
	if start.IsZero() {
		return nil
	}

	title := item.Summary
	if title == "" {
		title = "(untitled event)"
	}

	return &model.Event{
		Source:       types.SourceTypeCalendar,
		ExternalID:   item.Id,
		OccurredAt:   start,
		Category:     types.EventCategoryMeeting,
		Title:        title,
		Body:         eventBody(item),
		PriorityHint: priorityHint(item),
		RawRef:       item.HtmlLink,
	}
}

func eventStart(item *gcal.Event) time.Time {
	if item.Start == nil {
		return time.Time{}
	}
	if item.Start.DateTime != "" {
		t, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err == nil {
			return t.UTC()
		}
	}
	if item.Start.Date != "" {
		t, err := time.Parse("2006-01-02", item.Start.Date)
		if err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func eventBody(item *gcal.Event) string {
	var parts []string
	if len(item.Attendees) > 0 {
		names := make([]string, 0, len(item.Attendees))
		for _, a := range item.Attendees {
			if a.Self {
				continue
			}
			name := a.DisplayName
			if name == "" {
				name = a.Email
			}
			if name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			parts = append(parts, "With: "+strings.Join(names, ", "))
		}
	}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	return strings.Join(parts, "\n")
}

// priorityHint marks meetings still awaiting the user's response
func priorityHint(item *gcal.Event) int {
	for _, a := range item.Attendees {
		if a.Self && a.ResponseStatus == "needsAction" {
			return 1
		}
	}
	return 0
}

// convertError maps provider failures to the connector error taxonomy
func convertError(st types.SourceType, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusTooManyRequests || gerr.Code == http.StatusForbidden) {
		return source.RateLimited(st, retryAfter(gerr))
	}
	return source.Unavailable(st, err)
}

func retryAfter(gerr *googleapi.Error) time.Duration {
	if v := gerr.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
