package repo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func (s *Store) TopicFields(ctx context.Context, ids []int64, names ...string) (map[int64]domain.Fields, error) {
	return loadFields(ctx, s.colTopicFields, ids, names)
}

func (s *Store) PostFields(ctx context.Context, ids []int64, names ...string) (map[int64]domain.Fields, error) {
	return loadFields(ctx, s.colPostFields, ids, names)
}

func (s *Store) CategoryFields(ctx context.Context, id int64) (domain.Fields, error) {
	m, err := loadFields(ctx, s.colCategoryFields, []int64{id}, nil)
	if err != nil {
		return nil, err
	}
	return m[id], nil
}

func loadFields(ctx context.Context, col *mongo.Collection, ids []int64, names []string) (map[int64]domain.Fields, error) {
	out := make(map[int64]domain.Fields)
	if len(ids) == 0 {
		return out, nil
	}
	filter := bson.M{"owner_id": bson.M{"$in": ids}}
	if len(names) > 0 {
		filter["name"] = bson.M{"$in": names}
	}
	cur, err := col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := decodeAll[domain.CustomField](ctx, cur)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if out[r.OwnerID] == nil {
			out[r.OwnerID] = domain.Fields{}
		}
		out[r.OwnerID][r.Name] = r.Value
	}
	return out, nil
}

// writeField upserts or deletes one row. created_at survives updates.
func writeField(ctx context.Context, col *mongo.Collection, ch domain.FieldChange, now time.Time) error {
	key := bson.M{"owner_id": ch.OwnerID, "name": ch.Name}
	if ch.Value == nil {
		_, err := col.DeleteOne(ctx, key)
		return err
	}
	_, err := col.UpdateOne(ctx, key, bson.M{
		"$set":         bson.M{"value": *ch.Value, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}, options.Update().SetUpsert(true))
	return err
}

// SaveTopicFields bumps the topic version (compare-and-swap) and writes all
// topic and post field changes, inside a transaction when enabled.
func (s *Store) SaveTopicFields(ctx context.Context, u domain.TopicFieldsUpdate) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.topic_fields.save",
		tracer.Tag("topic_id", u.TopicID),
	)
	defer sp.Finish()

	apply := func(ctx context.Context) error {
		now := time.Now().UTC()
		res, err := s.colTopics.UpdateOne(ctx,
			bson.M{"_id": u.TopicID, "version": u.Version},
			bson.M{"$inc": bson.M{"version": 1}, "$set": bson.M{"updated_at": now}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			if _, err := s.FindTopic(ctx, u.TopicID); err != nil {
				return err
			}
			return domain.ErrConflict
		}
		for _, ch := range u.Topic {
			ch.OwnerID = u.TopicID
			if err := writeField(ctx, s.colTopicFields, ch, now); err != nil {
				return fmt.Errorf("topic field %s: %w", ch.Name, err)
			}
		}
		for _, ch := range u.Posts {
			if err := writeField(ctx, s.colPostFields, ch, now); err != nil {
				return fmt.Errorf("post %d field %s: %w", ch.OwnerID, ch.Name, err)
			}
		}
		return nil
	}

	var err error
	if s.transactions {
		err = s.withTransaction(ctx, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		sp.SetTag("error", err)
	}
	return err
}

func (s *Store) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.Client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) CategoryIDsWithField(ctx context.Context, name, value string) ([]int64, error) {
	raw, err := s.colCategoryFields.Distinct(ctx, "owner_id", bson.M{"name": name, "value": value})
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case int64:
			out = append(out, id)
		case int32:
			out = append(out, int64(id))
		}
	}
	return out, nil
}

func (s *Store) SaveCategoryFields(ctx context.Context, categoryID int64, changes []domain.FieldChange) error {
	if _, err := s.FindCategory(ctx, categoryID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, ch := range changes {
		ch.OwnerID = categoryID
		if err := writeField(ctx, s.colCategoryFields, ch, now); err != nil {
			return err
		}
	}
	s.hooksMu.RLock()
	hooks := append([]func(context.Context, int64){}, s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, categoryID)
	}
	return nil
}

func (s *Store) OnCategorySaved(hook func(ctx context.Context, categoryID int64)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
