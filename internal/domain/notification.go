package domain

import "time"

type NotificationType int

// NotificationCustom is the host's type for plugin-defined notifications.
const NotificationCustom NotificationType = 14

type Notification struct {
	ID         int64            `bson:"_id" json:"id"`
	Type       NotificationType `bson:"notification_type" json:"notification_type"`
	UserID     int64            `bson:"user_id" json:"user_id"`
	TopicID    int64            `bson:"topic_id" json:"topic_id"`
	PostNumber int              `bson:"post_number" json:"post_number"`
	Data       string           `bson:"data" json:"data"` // JSON payload
	Read       bool             `bson:"read" json:"read"`
	CreatedAt  time.Time        `bson:"created_at" json:"created_at"`
}

// NotificationQuery matches notifications by their identifying tuple.
type NotificationQuery struct {
	Type       NotificationType
	UserID     int64
	TopicID    int64
	PostNumber int
}
