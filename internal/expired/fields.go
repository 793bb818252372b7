package expired

import (
	"strconv"
	"strings"

	"github.com/tazhibayda/expired-service/internal/domain"
)

const (
	TopicFieldExpiredPostID = "expired_topic_post_id"
	PostFieldIsExpired      = "is_expired_topic"
	CategoryFieldEnabled    = "enable_expired_topics"
)

// ExpiredPostID returns the topic's recorded expired post. Concurrent writers
// on older deployments could leave a comma-joined list; the first id wins.
func ExpiredPostID(f domain.Fields) (int64, bool) {
	v, ok := f.Get(TopicFieldExpiredPostID)
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HasExpiredPost reports presence only; the value is not parsed.
func HasExpiredPost(f domain.Fields) bool {
	_, ok := f.Get(TopicFieldExpiredPostID)
	return ok
}

func IsExpiredPost(f domain.Fields) bool {
	v, ok := f.Get(PostFieldIsExpired)
	return ok && v != ""
}

func CategoryEnabled(f domain.Fields) bool {
	v, _ := f.Get(CategoryFieldEnabled)
	return v == "true"
}

func setExpiredPostID(topicID, postID int64) domain.FieldChange {
	return domain.SetField(topicID, TopicFieldExpiredPostID, strconv.FormatInt(postID, 10))
}

func clearExpiredPostID(topicID int64) domain.FieldChange {
	return domain.DeleteField(topicID, TopicFieldExpiredPostID)
}

func markPost(postID int64) domain.FieldChange {
	return domain.SetField(postID, PostFieldIsExpired, "true")
}

func unmarkPost(postID int64) domain.FieldChange {
	return domain.DeleteField(postID, PostFieldIsExpired)
}

// EnableCategory builds the change that turns the feature on or off for a
// category.
func EnableCategory(categoryID int64, on bool) domain.FieldChange {
	if !on {
		return domain.DeleteField(categoryID, CategoryFieldEnabled)
	}
	return domain.SetField(categoryID, CategoryFieldEnabled, "true")
}
