package repo

import (
	"context"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == 0 {
		id, err := s.nextID(ctx, "users")
		if err != nil {
			return err
		}
		u.ID = id
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.colUsers.InsertOne(ctx, u)
	return err
}

func (s *Store) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	return findOne[domain.User](ctx, s.colUsers, bson.M{"_id": id})
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == 0 {
		id, err := s.nextID(ctx, "categories")
		if err != nil {
			return err
		}
		c.ID = id
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.colCategories.InsertOne(ctx, c)
	return err
}

func (s *Store) FindCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return findOne[domain.Category](ctx, s.colCategories, bson.M{"_id": id})
}
