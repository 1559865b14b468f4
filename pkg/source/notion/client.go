package notion

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

const pageSize = 100

// defaultRate stays under Notion's 3 req/s API limit
var defaultRate = rate.Limit(2)

// client implements source.Connector for a Notion task database. Pages edited
// within the window whose status or checkbox property is not done become task
// events. The user ID is not used for filtering; the database itself is
// scoped to the user.
type client struct {
	api     *notionapi.Client
	dbID    string
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

// New creates a Notion connector for the given task database
func New(token, databaseID string, opts ...Option) (source.Connector, error) {
	if token == "" {
		return nil, goerr.New("Notion API token is required")
	}
	if databaseID == "" {
		return nil, goerr.New("Notion database ID is required")
	}

	c := &client{
		api:     notionapi.NewClient(notionapi.Token(token)),
		dbID:    databaseID,
		limiter: rate.NewLimiter(defaultRate, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Type identifies the connector source
func (c *client) Type() types.SourceType {
	return types.SourceTypeNotion
}

// Fetch retrieves pending task pages edited within the window
func (c *client) Fetch(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		var cursor notionapi.Cursor

		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(nil, source.Unavailable(c.Type(), err))
				return
			}

			onOrAfter := notionapi.Date(window.Start)
			resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(c.dbID), &notionapi.DatabaseQueryRequest{
				Filter: &notionapi.TimestampFilter{
					Timestamp: "last_edited_time",
					LastEditedTime: &notionapi.DateFilterCondition{
						OnOrAfter: &onOrAfter,
					},
				},
				StartCursor: cursor,
				PageSize:    pageSize,
			})
			if err != nil {
				yield(nil, convertError(c.Type(), err))
				return
			}

			for i := range resp.Results {
				ev := normalize(&resp.Results[i])
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

			if !resp.HasMore {
				return
			}
			cursor = resp.NextCursor
		}
	}
}

// normalize converts a Notion page to a task event. Completed tasks are
// skipped. The page ID is stable across fetches.
func normalize(page *notionapi.Page) *model.Event {
	props := inspect(page.Properties)
	if props.done {
		return nil
	}

	title := props.title
	if title == "" {
		title = "Untitled"
	}

	return &model.Event{
		Source:       types.SourceTypeNotion,
		ExternalID:   page.ID.String(),
		OccurredAt:   time.Time(page.LastEditedTime).UTC(),
		Category:     types.EventCategoryTask,
		Title:        title,
		Body:         props.status,
		PriorityHint: props.priority,
		RawRef:       page.URL,
	}
}

type pageProps struct {
	title    string
	status   string
	done     bool
	priority int
}

func inspect(properties notionapi.Properties) pageProps {
	var p pageProps

	for _, prop := range properties {
		switch v := prop.(type) {
		case *notionapi.TitleProperty:
			if len(v.Title) > 0 {
				p.title = v.Title[0].PlainText
			}

		case *notionapi.CheckboxProperty:
			p.done = v.Checkbox

		case *notionapi.StatusProperty:
			name := v.Status.Name
			p.status = "Status: " + name
			switch strings.ToLower(name) {
			case "done", "complete", "completed":
				p.done = true
			}

		case *notionapi.SelectProperty:
			switch strings.ToLower(v.Select.Name) {
			case "high", "urgent":
				p.priority = 1
			}
		}
	}

	return p
}

// convertError maps Notion API failures to the connector error taxonomy
func convertError(st types.SourceType, err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return source.RateLimited(st, time.Minute)
	}
	return source.Unavailable(st, err)
}
