// Package view builds the JSON view models of topics, posts and topic-list
// items. Features add computed fields by registering named providers.
package view

import (
	"context"
	"sync"

	"github.com/tazhibayda/expired-service/internal/domain"
)

// Scope is the viewer. User is nil for anonymous requests.
type Scope struct {
	User *domain.User
}

type TopicContext struct {
	Scope  Scope
	Topic  *domain.Topic
	Fields domain.Fields // preloaded topic custom fields
}

type PostContext struct {
	Scope  Scope
	Topic  *domain.Topic
	Post   *domain.Post
	Fields domain.Fields // whitelisted post custom fields
}

type ListItemContext struct {
	Scope  Scope
	Topic  *domain.Topic
	Fields domain.Fields
}

// A provider returns the field value and whether to include it at all.
type (
	TopicField    func(ctx context.Context, tc *TopicContext) (any, bool)
	PostField     func(ctx context.Context, pc *PostContext) (any, bool)
	ListItemField func(ctx context.Context, lc *ListItemContext) (any, bool)
)

type named[F any] struct {
	name string
	fn   F
}

type Registry struct {
	mu         sync.RWMutex
	topic      []named[TopicField]
	post       []named[PostField]
	listItem   []named[ListItemField]
	topicNames []string
	postNames  []string
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) AddTopicField(name string, fn TopicField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topic = append(r.topic, named[TopicField]{name, fn})
}

func (r *Registry) AddPostField(name string, fn PostField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post = append(r.post, named[PostField]{name, fn})
}

func (r *Registry) AddListItemField(name string, fn ListItemField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listItem = append(r.listItem, named[ListItemField]{name, fn})
}

// PreloadTopicFields names topic custom fields loaded with every topic view
// and topic list.
func (r *Registry) PreloadTopicFields(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topicNames = appendUnique(r.topicNames, names...)
}

// WhitelistPostFields names post custom fields loaded with posts.
func (r *Registry) WhitelistPostFields(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postNames = appendUnique(r.postNames, names...)
}

func (r *Registry) TopicFieldNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.topicNames...)
}

func (r *Registry) PostFieldNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.postNames...)
}

func (r *Registry) Topic(ctx context.Context, tc *TopicContext) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.topic))
	for _, f := range r.topic {
		if v, ok := f.fn(ctx, tc); ok {
			out[f.name] = v
		}
	}
	return out
}

func (r *Registry) Post(ctx context.Context, pc *PostContext) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.post))
	for _, f := range r.post {
		if v, ok := f.fn(ctx, pc); ok {
			out[f.name] = v
		}
	}
	return out
}

func (r *Registry) ListItem(ctx context.Context, lc *ListItemContext) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.listItem))
	for _, f := range r.listItem {
		if v, ok := f.fn(ctx, lc); ok {
			out[f.name] = v
		}
	}
	return out
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		dup := false
		for _, d := range dst {
			if d == n {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, n)
		}
	}
	return dst
}
