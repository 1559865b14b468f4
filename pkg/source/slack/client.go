package slack

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

const (
	channelPageSize = 100
	historyLimit    = 200
)

// defaultRate stays under Slack's Tier 3 Web API limit
var defaultRate = rate.Limit(1)

// client implements source.Connector for Slack. It collects mentions of the
// user and direct messages within the window. The user ID is the Slack user
// ID (e.g. U01234567).
type client struct {
	api      *slack.Client
	limiter  *rate.Limiter
	maxConvs int
}

// Option is a functional option for client configuration
type Option func(*client)

// WithRateLimit overrides the default API pacing
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithMaxConversations caps how many conversations are scanned per fetch
func WithMaxConversations(n int) Option {
	return func(c *client) {
		c.maxConvs = n
	}
}

// New creates a Slack connector with the provided bot token
func New(token string, opts ...Option) (source.Connector, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		api:      slack.New(token),
		limiter:  rate.NewLimiter(defaultRate, 3),
		maxConvs: 50,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Type identifies the connector source
func (c *client) Type() types.SourceType {
	return types.SourceTypeSlack
}

// Fetch retrieves mentions and DMs for the user within the window
func (c *client) Fetch(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		convs, err := c.listConversations(ctx)
		if err != nil {
			yield(nil, convertError(c.Type(), err))
			return
		}

		mention := "<@" + userID + ">"

		for _, conv := range convs {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(nil, source.Unavailable(c.Type(), err))
				return
			}

			resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
				ChannelID: conv.ID,
				Oldest:    formatTS(window.Start),
				Latest:    formatTS(window.End),
				Limit:     historyLimit,
			})
			if err != nil {
				yield(nil, convertError(c.Type(), err))
				return
			}

			for _, msg := range resp.Messages {
				ev := normalize(conv, msg, mention)
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
		}
	}
}

func (c *client) listConversations(ctx context.Context) ([]slack.Channel, error) {
	var channels []slack.Channel
	var cursor string

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		convs, nextCursor, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "im"},
			ExcludeArchived: true,
			Limit:           channelPageSize,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, err
		}

		for _, conv := range convs {
			if conv.IsIM || conv.IsMember {
				channels = append(channels, conv)
			}
			if len(channels) >= c.maxConvs {
				return channels, nil
			}
		}

		if nextCursor == "" {
			return channels, nil
		}
		cursor = nextCursor
	}
}

// normalize converts a Slack message to the common model. Only DMs and
// messages mentioning the user are kept. The channel ID and message ts form
// a stable external ID across overlapping fetches.
func normalize(conv slack.Channel, msg slack.Message, mention string) *model.Event {
	if msg.SubType != "" || msg.Text == "" {
		return nil
	}

	isDM := conv.IsIM
	isMention := strings.Contains(msg.Text, mention)
	if !isDM && !isMention {
		return nil
	}

	ts := parseTS(msg.Timestamp)
	if ts.IsZero() {
		return nil
	}

	var title string
	priority := 0
	if isDM {
		title = "DM from " + msg.User
		priority = 1
	} else {
		title = "Mention in #" + conv.Name
	}

	body := msg.Text
	if len(body) > 500 {
		body = body[:500]
	}

	return &model.Event{
		Source:       types.SourceTypeSlack,
		ExternalID:   conv.ID + "/" + msg.Timestamp,
		OccurredAt:   ts,
		Category:     types.EventCategoryMessage,
		Title:        title,
		Body:         body,
		PriorityHint: priority,
		RawRef:       conv.ID,
	}
}

func formatTS(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func parseTS(ts string) time.Time {
	sec, _, ok := strings.Cut(ts, ".")
	if !ok {
		sec = ts
	}
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// convertError maps Slack API failures to the connector error taxonomy
func convertError(st types.SourceType, err error) error {
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return source.RateLimited(st, rle.RetryAfter)
	}
	return source.Unavailable(st, err)
}
