package firestore

import (
	"context"
	"encoding/base64"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"google.golang.org/api/iterator"
)

type eventDocument struct {
	Source       string    `firestore:"source"`
	ExternalID   string    `firestore:"external_id"`
	OccurredAt   time.Time `firestore:"occurred_at"`
	Date         string    `firestore:"date"`
	Category     string    `firestore:"category"`
	Title        string    `firestore:"title"`
	Body         string    `firestore:"body"`
	PriorityHint int       `firestore:"priority_hint"`
	RawRef       string    `firestore:"raw_ref"`
}

type eventRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newEventRepository(client *firestore.Client) *eventRepository {
	return &eventRepository{client: client}
}

func (r *eventRepository) usersCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_users"
	}
	return "users"
}

func (r *eventRepository) eventsRef(userID string) *firestore.CollectionRef {
	return r.client.Collection(r.usersCollection()).Doc(userID).Collection("events")
}

// docID derives a Firestore-safe document ID from the natural event key.
// External IDs may contain slashes, so they are base64url encoded.
func docID(key model.EventKey) string {
	return string(key.Source) + "_" + base64.RawURLEncoding.EncodeToString([]byte(key.ExternalID))
}

func eventToDocument(ev *model.Event) *eventDocument {
	return &eventDocument{
		Source:       string(ev.Source),
		ExternalID:   ev.ExternalID,
		OccurredAt:   ev.OccurredAt,
		Date:         string(model.NewBriefingDate(ev.OccurredAt)),
		Category:     string(ev.Category),
		Title:        ev.Title,
		Body:         ev.Body,
		PriorityHint: ev.PriorityHint,
		RawRef:       ev.RawRef,
	}
}

func eventToModel(doc *eventDocument) *model.Event {
	return &model.Event{
		Source:       types.SourceType(doc.Source),
		ExternalID:   doc.ExternalID,
		OccurredAt:   doc.OccurredAt,
		Category:     types.EventCategory(doc.Category),
		Title:        doc.Title,
		Body:         doc.Body,
		PriorityHint: doc.PriorityHint,
		RawRef:       doc.RawRef,
	}
}

// Upsert writes the batch in a single transaction so a storage failure leaves
// prior state unchanged. Existence is checked inside the transaction to keep
// the inserted/updated counts correct under concurrent retries.
func (r *eventRepository) Upsert(ctx context.Context, userID string, events []*model.Event) (int, int, error) {
	if userID == "" {
		return 0, 0, goerr.Wrap(ErrWriteFailed, "user ID is required")
	}

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return 0, 0, goerr.Wrap(ErrWriteFailed, "invalid event in batch",
				goerr.V("userID", userID),
				goerr.V("cause", err.Error()))
		}
	}

	if len(events) == 0 {
		return 0, 0, nil
	}

	var inserted, updated int
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		inserted, updated = 0, 0

		refs := make([]*firestore.DocumentRef, len(events))
		for i, ev := range events {
			refs[i] = r.eventsRef(userID).Doc(docID(ev.Key()))
		}

		snaps, err := tx.GetAll(refs)
		if err != nil {
			return goerr.Wrap(err, "failed to read existing events")
		}

		for i, ev := range events {
			if snaps[i].Exists() {
				updated++
			} else {
				inserted++
			}
			if err := tx.Set(refs[i], eventToDocument(ev)); err != nil {
				return goerr.Wrap(err, "failed to set event", goerr.V("key", ev.Key().String()))
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, goerr.Wrap(ErrWriteFailed, "event upsert transaction failed",
			goerr.V("userID", userID),
			goerr.V("count", len(events)),
			goerr.V("cause", err.Error()))
	}

	return inserted, updated, nil
}

// Query retrieves a user's events for a date ordered by occurred_at.
// Requires the composite index maintained by the migrate command.
func (r *eventRepository) Query(ctx context.Context, userID string, date model.BriefingDate) ([]*model.Event, error) {
	iter := r.eventsRef(userID).
		Where("date", "==", string(date)).
		OrderBy("occurred_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var events []*model.Event
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query events",
				goerr.V("userID", userID),
				goerr.V("date", date))
		}

		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode event document", goerr.V("doc", snap.Ref.ID))
		}
		events = append(events, eventToModel(&doc))
	}

	return events, nil
}
