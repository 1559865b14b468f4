package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shurcooL/githubv4"
	"golang.org/x/time/rate"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"github.com/secmon-lab/orbit/pkg/source"
)

const searchPageSize = 50

// defaultRate keeps GraphQL point consumption well under the hourly budget
var defaultRate = rate.Limit(2)

// urgentLabels mark issues and PRs that should rank above routine activity
var urgentLabels = map[string]bool{
	"urgent": true,
	"p0":     true,
	"p1":     true,
}

// client implements source.Connector for GitHub. It fetches pull requests and
// issues involving the user within the window using GitHub App authentication.
// The user ID is the GitHub login.
type client struct {
	gql     *githubv4.Client
	repos   []string // "owner/name"
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

// New creates a GitHub connector using GitHub App authentication.
// privateKey can be a PEM string or a file path to a PEM file.
func New(appID, installationID int64, privateKey string, repos []string, opts ...Option) (source.Connector, error) {
	if len(repos) == 0 {
		return nil, goerr.New("at least one repository is required")
	}

	var key []byte
	// Try reading as file path first
	// #nosec G304 -- path comes from CLI flag, not user input
	if data, err := os.ReadFile(privateKey); err == nil {
		key = data
	} else {
		key = []byte(privateKey)
	}

	tr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	c := &client{
		gql:     githubv4.NewClient(&http.Client{Transport: tr}),
		repos:   repos,
		limiter: rate.NewLimiter(defaultRate, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Type identifies the connector source
func (c *client) Type() types.SourceType {
	return types.SourceTypeGitHub
}

// searchNode holds the fields shared by PR and issue search results
type searchNode struct {
	Number    githubv4.Int
	Title     githubv4.String
	URL       githubv4.URI `graphql:"url"`
	CreatedAt githubv4.DateTime
	Author    struct {
		Login githubv4.String
	}
	Labels struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"labels(first: 10)"`
}

type searchResult struct {
	Search struct {
		PageInfo struct {
			HasNextPage githubv4.Boolean
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				PullRequest searchNode `graphql:"... on PullRequest"`
				Issue       searchNode `graphql:"... on Issue"`
				TypeName    string     `graphql:"__typename"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: $first, after: $cursor)"`
}

// Fetch retrieves PRs and issues involving the user within the window
func (c *client) Fetch(ctx context.Context, userID string, window source.Window) iter.Seq2[*model.Event, error] {
	return func(yield func(*model.Event, error) bool) {
		for _, repo := range c.repos {
			query := fmt.Sprintf("repo:%s involves:%s created:%s..%s sort:created-asc",
				repo, userID,
				window.Start.Format(time.RFC3339),
				window.End.Format(time.RFC3339))

			if !c.search(ctx, repo, query, window, yield) {
				return
			}
		}
	}
}

// search pages through one repository's search results; it returns false when
// the consumer stopped or an error was yielded
func (c *client) search(ctx context.Context, repo, query string, window source.Window, yield func(*model.Event, error) bool) bool {
	var cursor *githubv4.String

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return yield(nil, source.Unavailable(c.Type(), err))
		}

		var q searchResult
		variables := map[string]interface{}{
			"query":  githubv4.String(query),
			"first":  githubv4.Int(searchPageSize),
			"cursor": cursor,
		}

		if err := c.gql.Query(ctx, &q, variables); err != nil {
			return yield(nil, convertError(c.Type(), err))
		}

		for _, edge := range q.Search.Edges {
			var ev *model.Event
			switch edge.Node.TypeName {
			case "PullRequest":
				ev = normalize(repo, edge.Node.PullRequest, types.EventCategoryDeployment, "PR")
			case "Issue":
				ev = normalize(repo, edge.Node.Issue, types.EventCategoryTask, "Issue")
			default:
				continue
			}

			if !window.Contains(ev.OccurredAt) {
				continue
			}
			if !yield(ev, nil) {
				return false
			}
		}

		if !q.Search.PageInfo.HasNextPage {
			return true
		}
		cursor = &q.Search.PageInfo.EndCursor
	}
}

// normalize converts a search node to the common model. The repo and number
// form a stable external ID across fetches.
func normalize(repo string, node searchNode, category types.EventCategory, kind string) *model.Event {
	priority := 0
	var labels []string
	for _, l := range node.Labels.Nodes {
		name := string(l.Name)
		labels = append(labels, name)
		if urgentLabels[strings.ToLower(name)] {
			priority = 1
		}
	}

	body := "By " + string(node.Author.Login)
	if len(labels) > 0 {
		body += " [" + strings.Join(labels, ", ") + "]"
	}

	return &model.Event{
		Source:       types.SourceTypeGitHub,
		ExternalID:   fmt.Sprintf("%s#%d", repo, node.Number),
		OccurredAt:   node.CreatedAt.Time.UTC(),
		Category:     category,
		Title:        fmt.Sprintf("%s %s#%d: %s", kind, repo, node.Number, node.Title),
		Body:         body,
		PriorityHint: priority,
		RawRef:       node.URL.String(),
	}
}

// convertError maps GitHub API failures to the connector error taxonomy
func convertError(st types.SourceType, err error) error {
	if strings.Contains(err.Error(), "rate limit") {
		return source.RateLimited(st, time.Minute)
	}
	return source.Unavailable(st, err)
}
