package domain

import "context"

type UserStore interface {
	FindUser(ctx context.Context, id int64) (*User, error)
}

type PostStore interface {
	FindPost(ctx context.Context, id int64) (*Post, error)
	ListPosts(ctx context.Context, topicID int64) ([]Post, error)
}

type TopicStore interface {
	FindTopic(ctx context.Context, id int64) (*Topic, error)
	ListTopics(ctx context.Context, p TopicListParams) ([]Topic, error)
	SearchTopics(ctx context.Context, q TopicQuery) ([]Topic, error)
}

type CustomFieldStore interface {
	// TopicFields and PostFields batch-load the named fields; owners
	// without any matching field are absent from the result.
	TopicFields(ctx context.Context, topicIDs []int64, names ...string) (map[int64]Fields, error)
	PostFields(ctx context.Context, postIDs []int64, names ...string) (map[int64]Fields, error)
	SaveTopicFields(ctx context.Context, u TopicFieldsUpdate) error

	CategoryIDsWithField(ctx context.Context, name, value string) ([]int64, error)
	CategoryFields(ctx context.Context, categoryID int64) (Fields, error)
	SaveCategoryFields(ctx context.Context, categoryID int64, changes []FieldChange) error
	// OnCategorySaved registers a hook run after every category save.
	OnCategorySaved(hook func(ctx context.Context, categoryID int64))
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	// DeleteNotification removes the newest notification matching q and
	// reports whether one existed.
	DeleteNotification(ctx context.Context, q NotificationQuery) (bool, error)
	ListNotifications(ctx context.Context, userID int64, limit int) ([]Notification, error)
}

type FieldReportStore interface {
	CountTopicFieldByDay(ctx context.Context, q FieldCountQuery) ([]DayCount, error)
	CountTopicField(ctx context.Context, q FieldCountQuery) (int64, error)
}

// ForumStore is everything the service needs from the host's persistence.
type ForumStore interface {
	UserStore
	PostStore
	TopicStore
	CustomFieldStore
	NotificationStore
	FieldReportStore
	FindCategory(ctx context.Context, id int64) (*Category, error)
	Ping(ctx context.Context) error
}
