package domain

import "time"

type Post struct {
	ID         int64     `bson:"_id" json:"id"`
	TopicID    int64     `bson:"topic_id" json:"topic_id"`
	UserID     int64     `bson:"user_id" json:"user_id"`
	PostNumber int       `bson:"post_number" json:"post_number"`
	Raw        string    `bson:"raw" json:"raw"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
