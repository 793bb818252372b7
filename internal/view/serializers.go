package view

import (
	"context"

	"github.com/tazhibayda/expired-service/internal/domain"
)

// TopicView loads everything a topic page needs and renders it, including
// registered extra fields on the topic and every post.
func (r *Registry) TopicView(ctx context.Context, s domain.ForumStore, scope Scope, t *domain.Topic) (map[string]any, error) {
	posts, err := s.ListPosts(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	tf, err := s.TopicFields(ctx, []int64{t.ID}, r.TopicFieldNames()...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	pf, err := s.PostFields(ctx, ids, r.PostFieldNames()...)
	if err != nil {
		return nil, err
	}

	stream := make([]map[string]any, 0, len(posts))
	for i := range posts {
		stream = append(stream, r.postJSON(ctx, scope, t, &posts[i], pf[posts[i].ID]))
	}
	out := map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"category_id": t.CategoryID,
		"user_id":     t.UserID,
		"closed":      t.Closed,
		"created_at":  t.CreatedAt,
		"posts":       stream,
	}
	for k, v := range r.Topic(ctx, &TopicContext{Scope: scope, Topic: t, Fields: tf[t.ID]}) {
		out[k] = v
	}
	return out, nil
}

// PostView renders a single post outside of a topic page.
func (r *Registry) PostView(ctx context.Context, s domain.ForumStore, scope Scope, p *domain.Post) (map[string]any, error) {
	t, err := s.FindTopic(ctx, p.TopicID)
	if err != nil {
		return nil, err
	}
	pf, err := s.PostFields(ctx, []int64{p.ID}, r.PostFieldNames()...)
	if err != nil {
		return nil, err
	}
	return r.postJSON(ctx, scope, t, p, pf[p.ID]), nil
}

// TopicList renders list items with preloaded custom fields (one query for
// the whole page).
func (r *Registry) TopicList(ctx context.Context, s domain.ForumStore, scope Scope, topics []domain.Topic) ([]map[string]any, error) {
	ids := make([]int64, len(topics))
	for i := range topics {
		ids[i] = topics[i].ID
	}
	tf, err := s.TopicFields(ctx, ids, r.TopicFieldNames()...)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(topics))
	for i := range topics {
		t := &topics[i]
		item := map[string]any{
			"id":          t.ID,
			"title":       t.Title,
			"category_id": t.CategoryID,
			"closed":      t.Closed,
			"created_at":  t.CreatedAt,
		}
		for k, v := range r.ListItem(ctx, &ListItemContext{Scope: scope, Topic: t, Fields: tf[t.ID]}) {
			item[k] = v
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Registry) postJSON(ctx context.Context, scope Scope, t *domain.Topic, p *domain.Post, f domain.Fields) map[string]any {
	out := map[string]any{
		"id":          p.ID,
		"topic_id":    p.TopicID,
		"user_id":     p.UserID,
		"post_number": p.PostNumber,
		"raw":         p.Raw,
		"created_at":  p.CreatedAt,
	}
	for k, v := range r.Post(ctx, &PostContext{Scope: scope, Topic: t, Post: p, Fields: f}) {
		out[k] = v
	}
	return out
}
