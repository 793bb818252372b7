package domain

import "time"

type Category struct {
	ID        int64     `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Slug      string    `bson:"slug" json:"slug"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Topic struct {
	ID         int64     `bson:"_id" json:"id"`
	CategoryID int64     `bson:"category_id" json:"category_id"`
	UserID     int64     `bson:"user_id" json:"user_id"` // original poster
	Title      string    `bson:"title" json:"title"`
	Closed     bool      `bson:"closed" json:"closed"`
	Version    int64     `bson:"version" json:"-"` // bumped on every custom-field write
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

type TopicListParams struct {
	CategoryID *int64
	Limit      int
	Skip       int
}

// TopicQuery is the store-level form of a parsed search. WithTopicField and
// WithoutTopicField restrict results to topics that have (or lack) a custom
// field with the given name.
type TopicQuery struct {
	Term              string
	CategoryID        *int64
	WithTopicField    []string
	WithoutTopicField []string
	Limit             int
}
