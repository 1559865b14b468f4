package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type briefingDocument struct {
	ID           string       `firestore:"id"`
	UserID       string       `firestore:"user_id"`
	Date         string       `firestore:"date"`
	SummaryText  string       `firestore:"summary_text"`
	ActionItems  []string     `firestore:"action_items"`
	SourceEvents []sourceRef  `firestore:"source_events"`
	GeneratedAt  time.Time    `firestore:"generated_at"`
	ModelVersion string       `firestore:"model_version"`
}

type sourceRef struct {
	Source     string `firestore:"source"`
	ExternalID string `firestore:"external_id"`
}

type briefingRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newBriefingRepository(client *firestore.Client) *briefingRepository {
	return &briefingRepository{client: client}
}

func (r *briefingRepository) usersCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_users"
	}
	return "users"
}

func (r *briefingRepository) briefingsRef(userID string) *firestore.CollectionRef {
	return r.client.Collection(r.usersCollection()).Doc(userID).Collection("briefings")
}

func briefingToDocument(b *model.Briefing) *briefingDocument {
	doc := &briefingDocument{
		ID:           string(b.ID),
		UserID:       b.UserID,
		Date:         string(b.Date),
		SummaryText:  b.SummaryText,
		ActionItems:  b.ActionItems,
		GeneratedAt:  b.GeneratedAt,
		ModelVersion: b.ModelVersion,
	}
	for _, key := range b.SourceEvents {
		doc.SourceEvents = append(doc.SourceEvents, sourceRef{
			Source:     string(key.Source),
			ExternalID: key.ExternalID,
		})
	}
	return doc
}

func briefingToModel(doc *briefingDocument) *model.Briefing {
	b := &model.Briefing{
		ID:           model.BriefingID(doc.ID),
		UserID:       doc.UserID,
		Date:         model.BriefingDate(doc.Date),
		SummaryText:  doc.SummaryText,
		ActionItems:  doc.ActionItems,
		GeneratedAt:  doc.GeneratedAt,
		ModelVersion: doc.ModelVersion,
	}
	for _, ref := range doc.SourceEvents {
		b.SourceEvents = append(b.SourceEvents, model.EventKey{
			Source:     types.SourceType(ref.Source),
			ExternalID: ref.ExternalID,
		})
	}
	return b
}

// Put stores a briefing keyed by date, so a rerun for the same user/day
// overwrites the prior artifact
func (r *briefingRepository) Put(ctx context.Context, briefing *model.Briefing) (*model.Briefing, error) {
	if err := briefing.Validate(); err != nil {
		return nil, goerr.Wrap(ErrWriteFailed, "invalid briefing", goerr.V("cause", err.Error()))
	}

	stored := *briefing
	if stored.ID == "" {
		stored.ID = model.NewBriefingID()
	}
	if stored.GeneratedAt.IsZero() {
		stored.GeneratedAt = time.Now().UTC()
	}

	ref := r.briefingsRef(stored.UserID).Doc(string(stored.Date))
	if _, err := ref.Set(ctx, briefingToDocument(&stored)); err != nil {
		return nil, goerr.Wrap(ErrWriteFailed, "failed to put briefing",
			goerr.V("userID", stored.UserID),
			goerr.V("date", stored.Date),
			goerr.V("cause", err.Error()))
	}

	return &stored, nil
}

// Get retrieves the briefing for a user on a date
func (r *briefingRepository) Get(ctx context.Context, userID string, date model.BriefingDate) (*model.Briefing, error) {
	snap, err := r.briefingsRef(userID).Doc(string(date)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "briefing not found",
				goerr.V("userID", userID),
				goerr.V("date", date))
		}
		return nil, goerr.Wrap(err, "failed to get briefing",
			goerr.V("userID", userID),
			goerr.V("date", date))
	}

	var doc briefingDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode briefing document", goerr.V("doc", snap.Ref.ID))
	}

	return briefingToModel(&doc), nil
}

// Latest retrieves the most recently generated briefing for a user
func (r *briefingRepository) Latest(ctx context.Context, userID string) (*model.Briefing, error) {
	iter := r.briefingsRef(userID).
		OrderBy("generated_at", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "no briefings for user", goerr.V("userID", userID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query latest briefing", goerr.V("userID", userID))
	}

	var doc briefingDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode briefing document", goerr.V("doc", snap.Ref.ID))
	}

	return briefingToModel(&doc), nil
}

// List retrieves briefings for a user ordered by date descending
func (r *briefingRepository) List(ctx context.Context, userID string, limit, offset int) ([]*model.Briefing, error) {
	q := r.briefingsRef(userID).OrderBy("date", firestore.Desc)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var briefings []*model.Briefing
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list briefings", goerr.V("userID", userID))
		}

		var doc briefingDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode briefing document", goerr.V("doc", snap.Ref.ID))
		}
		briefings = append(briefings, briefingToModel(&doc))
	}

	return briefings, nil
}
