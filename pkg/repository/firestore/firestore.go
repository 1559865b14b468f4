package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
)

// Sentinel errors of the Firestore backend
var (
	ErrNotFound    = goerr.New("not found")
	ErrWriteFailed = goerr.New("store write failed")
)

type Firestore struct {
	client   *firestore.Client
	event    *eventRepository
	briefing *briefingRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces collections, used by tests to isolate runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.event.collectionPrefix = prefix
		f.briefing.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:   client,
		event:    newEventRepository(client),
		briefing: newBriefingRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Event() interfaces.EventRepository {
	return f.event
}

func (f *Firestore) Briefing() interfaces.BriefingRepository {
	return f.briefing
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
