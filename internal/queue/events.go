package queue

const (
	ExchangeForum           = "forum.events"
	KeyNotificationCreated  = "notification.created"
	KeyExpiredAnswerMarked  = "expired.marked"
	KeyExpiredAnswerCleared = "expired.cleared"
)

// NotificationCreated is published after a notification row is stored.
type NotificationCreated struct {
	NotificationID  int64  `json:"notification_id"`
	UserID          int64  `json:"user_id"`
	TopicID         int64  `json:"topic_id"`
	PostNumber      int    `json:"post_number"`
	Message         string `json:"message"`
	DisplayUsername string `json:"display_username"`
	TopicTitle      string `json:"topic_title"`
}

// ExpiredAnswerChanged is published for both marking and clearing.
type ExpiredAnswerChanged struct {
	TopicID int64 `json:"topic_id"`
	PostID  int64 `json:"post_id"`
	ActorID int64 `json:"actor_id"`
	Expired bool  `json:"expired"`
}
