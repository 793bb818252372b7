// Package expired lets a topic author or staff member flag one reply as the
// topic's expired answer, and projects that flag into views, search and
// reports.
package expired

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/metrics"
	"github.com/tazhibayda/expired-service/internal/queue"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const NotificationMessage = "expired.expired_notification"

var (
	HourlyRule = ratelimit.Rule{Prefix: "expire-hr", Max: 20, Window: time.Hour}
	BurstRule  = ratelimit.Rule{Prefix: "expire-min", Max: 4, Window: 30 * time.Second}
)

type Options struct {
	// StrictUnexpire refuses to clear a post that is not the topic's
	// recorded expired answer.
	StrictUnexpire bool
	Rules          []ratelimit.Rule
	Exchange       string
}

type Service struct {
	store   domain.ForumStore
	policy  *Policy
	limiter ratelimit.Limiter
	pub     queue.Publisher
	log     *zap.Logger
	opts    Options
}

func NewService(store domain.ForumStore, policy *Policy, limiter ratelimit.Limiter, pub queue.Publisher, l *zap.Logger, opts Options) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	if pub == nil {
		pub = queue.NewNoop()
	}
	if opts.Rules == nil {
		opts.Rules = []ratelimit.Rule{HourlyRule, BurstRule}
	}
	if opts.Exchange == "" {
		opts.Exchange = queue.ExchangeForum
	}
	return &Service{store: store, policy: policy, limiter: limiter, pub: pub, log: l, opts: opts}
}

func (s *Service) Policy() *Policy { return s.policy }

// Expire records postID as its topic's expired answer, clearing any
// previously flagged post, and notifies the post author.
func (s *Service) Expire(ctx context.Context, actor *domain.User, postID int64) (err error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "expired.expire", tracer.Tag("post_id", postID))
	defer func() { s.finish(sp, "expire", err) }()

	post, topic, err := s.prepare(ctx, actor, postID)
	if err != nil {
		return err
	}
	tf, err := s.store.TopicFields(ctx, []int64{topic.ID}, TopicFieldExpiredPostID)
	if err != nil {
		return fmt.Errorf("load topic fields: %w", err)
	}

	u := domain.TopicFieldsUpdate{
		TopicID: topic.ID,
		Version: topic.Version,
		Topic:   []domain.FieldChange{setExpiredPostID(topic.ID, post.ID)},
	}
	if prev, ok := ExpiredPostID(tf[topic.ID]); ok && prev != post.ID {
		u.Posts = append(u.Posts, unmarkPost(prev))
	}
	u.Posts = append(u.Posts, markPost(post.ID))
	if err := s.store.SaveTopicFields(ctx, u); err != nil {
		return fmt.Errorf("save expired answer: %w", err)
	}

	s.publish(ctx, queue.KeyExpiredAnswerMarked, queue.ExpiredAnswerChanged{
		TopicID: topic.ID, PostID: post.ID, ActorID: actor.ID, Expired: true,
	})
	if actor.ID != post.UserID {
		s.notify(ctx, actor, topic, post)
	}
	return nil
}

// Unexpire clears the flag on postID and the topic's pointer. Unless
// StrictUnexpire is set it does not check that postID is the recorded one.
func (s *Service) Unexpire(ctx context.Context, actor *domain.User, postID int64) (err error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "expired.unexpire", tracer.Tag("post_id", postID))
	defer func() { s.finish(sp, "unexpire", err) }()

	post, topic, err := s.prepare(ctx, actor, postID)
	if err != nil {
		return err
	}
	if s.opts.StrictUnexpire {
		tf, err := s.store.TopicFields(ctx, []int64{topic.ID}, TopicFieldExpiredPostID)
		if err != nil {
			return fmt.Errorf("load topic fields: %w", err)
		}
		if id, ok := ExpiredPostID(tf[topic.ID]); !ok || id != post.ID {
			return ErrForbidden
		}
	}

	err = s.store.SaveTopicFields(ctx, domain.TopicFieldsUpdate{
		TopicID: topic.ID,
		Version: topic.Version,
		Topic:   []domain.FieldChange{clearExpiredPostID(topic.ID)},
		Posts:   []domain.FieldChange{unmarkPost(post.ID)},
	})
	if err != nil {
		return fmt.Errorf("clear expired answer: %w", err)
	}

	s.publish(ctx, queue.KeyExpiredAnswerCleared, queue.ExpiredAnswerChanged{
		TopicID: topic.ID, PostID: post.ID, ActorID: actor.ID, Expired: false,
	})
	_, err = s.store.DeleteNotification(ctx, domain.NotificationQuery{
		Type:       domain.NotificationCustom,
		UserID:     post.UserID,
		TopicID:    topic.ID,
		PostNumber: post.PostNumber,
	})
	if err != nil {
		log.WithDD(ctx, s.log).Warn("delete expired notification", zap.Int64("post_id", post.ID), zap.Error(err))
	}
	return nil
}

// prepare resolves the post and topic, applies the rate limit and checks
// permission. Nothing is written before it returns nil.
func (s *Service) prepare(ctx context.Context, actor *domain.User, postID int64) (*domain.Post, *domain.Topic, error) {
	if actor == nil {
		return nil, nil, ErrUnauthenticated
	}
	post, err := s.store.FindPost(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("post %d: %w", postID, err)
	}
	topic, err := s.store.FindTopic(ctx, post.TopicID)
	if err != nil {
		return nil, nil, fmt.Errorf("topic %d: %w", post.TopicID, err)
	}
	if !actor.Staff() {
		if err := ratelimit.Check(ctx, s.limiter, strconv.FormatInt(actor.ID, 10), s.opts.Rules...); err != nil {
			return nil, nil, err
		}
	}
	ok, err := s.policy.CanExpire(ctx, actor, topic)
	if err != nil {
		return nil, nil, fmt.Errorf("permission: %w", err)
	}
	if !ok {
		return nil, nil, ErrForbidden
	}
	return post, topic, nil
}

func (s *Service) notify(ctx context.Context, actor *domain.User, t *domain.Topic, p *domain.Post) {
	data, _ := json.Marshal(map[string]string{
		"message":          NotificationMessage,
		"display_username": actor.Username,
		"topic_title":      t.Title,
	})
	n := &domain.Notification{
		Type:       domain.NotificationCustom,
		UserID:     p.UserID,
		TopicID:    t.ID,
		PostNumber: p.PostNumber,
		Data:       string(data),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		log.WithDD(ctx, s.log).Error("create expired notification", zap.Int64("post_id", p.ID), zap.Error(err))
		return
	}
	s.publish(ctx, queue.KeyNotificationCreated, queue.NotificationCreated{
		NotificationID:  n.ID,
		UserID:          n.UserID,
		TopicID:         n.TopicID,
		PostNumber:      n.PostNumber,
		Message:         NotificationMessage,
		DisplayUsername: actor.Username,
		TopicTitle:      t.Title,
	})
}

func (s *Service) publish(ctx context.Context, key string, event any) {
	if err := s.pub.Publish(ctx, s.opts.Exchange, key, event, log.RequestID(ctx)); err != nil {
		log.WithDD(ctx, s.log).Warn("publish event", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) finish(sp ddtrace.Span, action string, err error) {
	metrics.ExpiredActions.WithLabelValues(action, Result(err)).Inc()
	if err != nil {
		sp.SetTag("error", err)
	}
	sp.Finish()
}

// Result classifies err for metrics and logs.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthenticated):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return "rate_limited"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
