package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	"github.com/westroxburyframing/ops-api/internal/domain"
	pfirestore "github.com/westroxburyframing/ops-api/internal/platform/firestore"
)

const activitiesCollection = "activities"

const defaultActivityLimit = 50

type activityDocument struct {
	OrderID   string    `firestore:"orderId"`
	Type      string    `firestore:"type"`
	Message   string    `firestore:"message"`
	Actor     string    `firestore:"actor,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// ActivityRepository implements repositories.ActivityRepository backed by Firestore.
type ActivityRepository struct {
	activities *pfirestore.BaseRepository[activityDocument]
}

// NewActivityRepository constructs a Firestore-backed activity repository.
func NewActivityRepository(provider *pfirestore.Provider) (*ActivityRepository, error) {
	if provider == nil {
		return nil, errors.New("activity repository requires firestore provider")
	}
	return &ActivityRepository{
		activities: pfirestore.NewBaseRepository[activityDocument](provider, activitiesCollection),
	}, nil
}

// Append writes one immutable activity entry. A missing ID or timestamp is
// filled in so callers can treat the log as fire-and-record.
func (r *ActivityRepository) Append(ctx context.Context, activity domain.Activity) error {
	if strings.TrimSpace(activity.OrderID) == "" {
		return errors.New("activity requires an order id")
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	id := strings.TrimSpace(activity.ID)
	if id == "" {
		id = ulid.Make().String()
	}
	_, err := r.activities.Set(ctx, id, activityDocument{
		OrderID:   activity.OrderID,
		Type:      string(activity.Type),
		Message:   activity.Message,
		Actor:     activity.Actor,
		CreatedAt: activity.CreatedAt,
	})
	return err
}

// List returns the most recent activity entries for an order, newest first.
func (r *ActivityRepository) List(ctx context.Context, orderID string, limit int) ([]domain.Activity, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("order id is required")
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	docs, err := r.activities.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", id).OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Activity, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.Activity{
			ID:        doc.ID,
			OrderID:   doc.Data.OrderID,
			Type:      domain.ActivityType(doc.Data.Type),
			Message:   doc.Data.Message,
			Actor:     doc.Data.Actor,
			CreatedAt: doc.Data.CreatedAt,
		})
	}
	return entries, nil
}
