package archive

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
)

// Client exports generated briefings to a Cloud Storage bucket as JSON for
// audit and offline analysis. Objects are written to
// <prefix>/<user_id>/<date>.json and overwritten on regeneration, mirroring
// the repository's one-briefing-per-day semantics.
type Client struct {
	bucket *storage.BucketHandle
	prefix string
}

// Option is a functional option for archive client configuration
type Option func(*Client)

// WithPrefix sets the object name prefix inside the bucket
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// New creates an archive client bound to a bucket
func New(ctx context.Context, bucketName string, opts ...Option) (*Client, error) {
	if bucketName == "" {
		return nil, goerr.New("archive bucket name is required")
	}

	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	c := &Client{
		bucket: gcs.Bucket(bucketName),
		prefix: "briefings",
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewWithCredentials creates an archive client using an explicit service
// account credentials file
func NewWithCredentials(ctx context.Context, bucketName, credentialsFile string, opts ...Option) (*Client, error) {
	if bucketName == "" {
		return nil, goerr.New("archive bucket name is required")
	}

	gcs, err := storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	c := &Client{
		bucket: gcs.Bucket(bucketName),
		prefix: "briefings",
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// archiveRecord is the exported JSON shape. Field names are part of the
// archive contract and stay stable independently of the model struct.
type archiveRecord struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Date         string   `json:"date"`
	Summary      string   `json:"summary"`
	ActionItems  []string `json:"action_items,omitempty"`
	SourceEvents []string `json:"source_events,omitempty"`
	GeneratedAt  string   `json:"generated_at"`
	ModelVersion string   `json:"model_version,omitempty"`
}

// Archive writes the briefing as a JSON object to the bucket
func (c *Client) Archive(ctx context.Context, b *model.Briefing) error {
	rec := archiveRecord{
		ID:           string(b.ID),
		UserID:       b.UserID,
		Date:         b.Date.String(),
		Summary:      b.SummaryText,
		ActionItems:  b.ActionItems,
		GeneratedAt:  b.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		ModelVersion: b.ModelVersion,
	}
	for _, key := range b.SourceEvents {
		rec.SourceEvents = append(rec.SourceEvents, key.String())
	}

	objName := path.Join(c.prefix, b.UserID, b.Date.String()+".json")

	w := c.bucket.Object(objName).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(rec); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode briefing archive",
			goerr.V("object", objName))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to write briefing archive",
			goerr.V("object", objName))
	}

	logging.From(ctx).Debug("archived briefing",
		"object", objName,
		"user_id", b.UserID,
		"date", b.Date.String())

	return nil
}
