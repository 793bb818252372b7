package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	Client *mongo.Client
	DB     *mongo.Database

	colUsers          *mongo.Collection
	colCategories     *mongo.Collection
	colTopics         *mongo.Collection
	colPosts          *mongo.Collection
	colNotifications  *mongo.Collection
	colTopicFields    *mongo.Collection
	colPostFields     *mongo.Collection
	colCategoryFields *mongo.Collection
	colCounters       *mongo.Collection

	// transactions requires a replica set; without it topic field updates
	// still rely on the version check but are not all-or-nothing.
	transactions bool

	hooksMu sync.RWMutex
	hooks   []func(ctx context.Context, categoryID int64)
}

var _ domain.ForumStore = (*Store)(nil)

func NewStore(ctx context.Context, uri, dbname string, transactions bool) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetMaxPoolSize(50),
	)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := cli.Database(dbname)
	return &Store{
		Client:            cli,
		DB:                db,
		colUsers:          db.Collection("users"),
		colCategories:     db.Collection("categories"),
		colTopics:         db.Collection("topics"),
		colPosts:          db.Collection("posts"),
		colNotifications:  db.Collection("notifications"),
		colTopicFields:    db.Collection("topic_custom_fields"),
		colPostFields:     db.Collection("post_custom_fields"),
		colCategoryFields: db.Collection("category_custom_fields"),
		colCounters:       db.Collection("counters"),
		transactions:      transactions,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error { return s.Client.Disconnect(ctx) }

// EnsureIndexes creates the indexes queries rely on. Custom-field tables are
// unique per (owner_id, name).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, col := range []*mongo.Collection{s.colTopicFields, s.colPostFields, s.colCategoryFields} {
		_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_owner_name"),
			},
			{
				Keys:    bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("name_created"),
			},
		})
		if err != nil {
			return err
		}
	}

	if _, err := s.colPosts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "topic_id", Value: 1}, {Key: "post_number", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("topic_post_number"),
	}); err != nil {
		return err
	}
	if _, err := s.colTopics.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "category_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("category_created_desc"),
	}); err != nil {
		return err
	}
	_, err := s.colNotifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1}, {Key: "notification_type", Value: 1},
			{Key: "topic_id", Value: 1}, {Key: "post_number", Value: 1},
		},
		Options: options.Index().SetName("user_type_topic_post"),
	})
	return err
}

// nextID hands out monotonically increasing integer ids per collection.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.colCounters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Seq, err
}

// findOne decodes a single document or returns domain.ErrNotFound.
func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	var v T
	err := col.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	var out []T
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
