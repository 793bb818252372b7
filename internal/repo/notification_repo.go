package repo

import (
	"context"
	"errors"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.notification.insert",
		tracer.Tag("user_id", n.UserID),
	)
	defer sp.Finish()

	id, err := s.nextID(ctx, "notifications")
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	n.ID = id
	n.CreatedAt = time.Now().UTC()
	if _, err := s.colNotifications.InsertOne(ctx, n); err != nil {
		sp.SetTag("error", err)
		return err
	}
	return nil
}

// DeleteNotification removes the newest notification matching the tuple.
func (s *Store) DeleteNotification(ctx context.Context, q domain.NotificationQuery) (bool, error) {
	err := s.colNotifications.FindOneAndDelete(ctx,
		bson.M{
			"notification_type": q.Type,
			"user_id":           q.UserID,
			"topic_id":          q.TopicID,
			"post_number":       q.PostNumber,
		},
		options.FindOneAndDelete().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 60
	}
	cur, err := s.colNotifications.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Notification](ctx, cur)
}
