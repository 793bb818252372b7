package repo

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func (s *Store) CreateTopic(ctx context.Context, t *domain.Topic) error {
	if t.ID == 0 {
		id, err := s.nextID(ctx, "topics")
		if err != nil {
			return err
		}
		t.ID = id
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.colTopics.InsertOne(ctx, t)
	return err
}

func (s *Store) FindTopic(ctx context.Context, id int64) (*domain.Topic, error) {
	return findOne[domain.Topic](ctx, s.colTopics, bson.M{"_id": id})
}

func (s *Store) CloseTopic(ctx context.Context, id int64, closed bool) error {
	res, err := s.colTopics.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"closed": closed}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) ListTopics(ctx context.Context, p domain.TopicListParams) ([]domain.Topic, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	filter := bson.M{}
	if p.CategoryID != nil {
		filter["category_id"] = *p.CategoryID
	}
	cur, err := s.colTopics.Find(ctx, filter,
		options.Find().SetLimit(int64(p.Limit)).SetSkip(int64(p.Skip)).
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Topic](ctx, cur)
}

// SearchTopics matches the title and narrows by custom-field presence with a
// set-membership subquery over topic_custom_fields.
func (s *Store) SearchTopics(ctx context.Context, q domain.TopicQuery) ([]domain.Topic, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.topics.search")
	defer sp.Finish()

	if q.Limit <= 0 {
		q.Limit = 50
	}
	and := bson.A{}
	if term := strings.TrimSpace(q.Term); term != "" {
		and = append(and, bson.M{"title": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}})
	}
	if q.CategoryID != nil {
		and = append(and, bson.M{"category_id": *q.CategoryID})
	}
	for _, name := range q.WithTopicField {
		ids, err := s.topicIDsWithField(ctx, name)
		if err != nil {
			sp.SetTag("error", err)
			return nil, err
		}
		and = append(and, bson.M{"_id": bson.M{"$in": ids}})
	}
	for _, name := range q.WithoutTopicField {
		ids, err := s.topicIDsWithField(ctx, name)
		if err != nil {
			sp.SetTag("error", err)
			return nil, err
		}
		and = append(and, bson.M{"_id": bson.M{"$nin": ids}})
	}
	filter := bson.M{}
	if len(and) > 0 {
		filter["$and"] = and
	}

	cur, err := s.colTopics.Find(ctx, filter,
		options.Find().SetLimit(int64(q.Limit)).
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return decodeAll[domain.Topic](ctx, cur)
}

func (s *Store) topicIDsWithField(ctx context.Context, name string) (bson.A, error) {
	ids, err := s.colTopicFields.Distinct(ctx, "owner_id", bson.M{"name": name, "value": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}
	return bson.A(ids), nil
}
