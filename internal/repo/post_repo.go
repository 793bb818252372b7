package repo

import (
	"context"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreatePost assigns the next post number within the topic unless one is set.
func (s *Store) CreatePost(ctx context.Context, p *domain.Post) error {
	if p.ID == 0 {
		id, err := s.nextID(ctx, "posts")
		if err != nil {
			return err
		}
		p.ID = id
	}
	if p.PostNumber == 0 {
		n, err := s.nextID(ctx, "post_number_topic_"+itoa(p.TopicID))
		if err != nil {
			return err
		}
		p.PostNumber = int(n)
	}
	p.CreatedAt = time.Now().UTC()
	_, err := s.colPosts.InsertOne(ctx, p)
	return err
}

func (s *Store) FindPost(ctx context.Context, id int64) (*domain.Post, error) {
	return findOne[domain.Post](ctx, s.colPosts, bson.M{"_id": id})
}

func (s *Store) ListPosts(ctx context.Context, topicID int64) ([]domain.Post, error) {
	cur, err := s.colPosts.Find(ctx, bson.M{"topic_id": topicID},
		options.Find().SetSort(bson.D{{Key: "post_number", Value: 1}}).SetLimit(1000),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Post](ctx, cur)
}
