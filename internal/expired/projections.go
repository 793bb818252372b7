package expired

import (
	"context"
	"regexp"

	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/search"
	"github.com/tazhibayda/expired-service/internal/view"
	"go.uber.org/zap"
)

type ExpiredTopicView struct {
	PostNumber int    `json:"post_number"`
	Username   string `json:"username"`
}

var (
	reInExpired   = regexp.MustCompile(`(?i)^in:expired$`)
	reInUnexpired = regexp.MustCompile(`(?i)^in:unexpired$`)
)

// Projections renders the expired state into views. Lookups that fail are
// logged and the field is left out.
type Projections struct {
	Store  domain.ForumStore
	Policy *Policy
	Log    *zap.Logger
}

func (p *Projections) Register(views *view.Registry, filters *search.Registry) {
	views.PreloadTopicFields(TopicFieldExpiredPostID)
	views.WhitelistPostFields(PostFieldIsExpired)

	views.AddTopicField("expired_topic", p.topicExpired)
	views.AddPostField("can_expire_answer", p.canExpireAnswer)
	views.AddPostField("can_unexpire_answer", p.canUnexpireAnswer)
	views.AddPostField("expired_topic", func(_ context.Context, pc *view.PostContext) (any, bool) {
		return IsExpiredPost(pc.Fields), true
	})
	views.AddListItemField("has_expired_topic", func(_ context.Context, lc *view.ListItemContext) (any, bool) {
		return true, HasExpiredPost(lc.Fields)
	})

	filters.AdvancedFilter(reInExpired, func(q *domain.TopicQuery) {
		q.WithTopicField = append(q.WithTopicField, TopicFieldExpiredPostID)
	})
	filters.AdvancedFilter(reInUnexpired, func(q *domain.TopicQuery) {
		q.WithoutTopicField = append(q.WithoutTopicField, TopicFieldExpiredPostID)
	})
}

func (p *Projections) topicExpired(ctx context.Context, tc *view.TopicContext) (any, bool) {
	v, ok := p.ExpiredTopic(ctx, tc.Topic, tc.Fields)
	return v, ok
}

// ExpiredTopic resolves the topic's recorded post to its number and author.
func (p *Projections) ExpiredTopic(ctx context.Context, t *domain.Topic, f domain.Fields) (*ExpiredTopicView, bool) {
	id, ok := ExpiredPostID(f)
	if !ok {
		return nil, false
	}
	post, err := p.Store.FindPost(ctx, id)
	if err != nil || post.TopicID != t.ID {
		p.debug(err, "expired post lookup", t.ID)
		return nil, false
	}
	u, err := p.Store.FindUser(ctx, post.UserID)
	if err != nil {
		p.debug(err, "expired post author lookup", t.ID)
		return nil, false
	}
	return &ExpiredTopicView{PostNumber: post.PostNumber, Username: u.Username}, true
}

func (p *Projections) canExpireAnswer(ctx context.Context, pc *view.PostContext) (any, bool) {
	ok, err := p.Policy.CanExpire(ctx, pc.Scope.User, pc.Topic)
	if err != nil {
		p.debug(err, "can_expire_answer", pc.Topic.ID)
		return false, true
	}
	return ok && pc.Post.PostNumber >= 0 && !IsExpiredPost(pc.Fields), true
}

func (p *Projections) canUnexpireAnswer(ctx context.Context, pc *view.PostContext) (any, bool) {
	ok, err := p.Policy.CanUnexpire(ctx, pc.Scope.User, pc.Topic, pc.Fields)
	if err != nil {
		p.debug(err, "can_unexpire_answer", pc.Topic.ID)
		return false, true
	}
	return ok, true
}

func (p *Projections) debug(err error, msg string, topicID int64) {
	if err == nil || p.Log == nil {
		return
	}
	p.Log.Warn(msg, zap.Int64("topic_id", topicID), zap.Error(err))
}
