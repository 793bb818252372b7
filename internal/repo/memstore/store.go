// Package memstore is an in-memory domain.ForumStore. It backs tests and
// single-process development runs (STORE=memory).
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
)

type fieldTable map[int64]map[string]domain.CustomField

type Store struct {
	mu sync.RWMutex

	users         map[int64]domain.User
	categories    map[int64]domain.Category
	topics        map[int64]domain.Topic
	posts         map[int64]domain.Post
	notifications map[int64]domain.Notification

	topicFields    fieldTable
	postFields     fieldTable
	categoryFields fieldTable

	seq   int64
	hooks []func(ctx context.Context, categoryID int64)
	now   func() time.Time
}

var _ domain.ForumStore = (*Store)(nil)

func New() *Store {
	return &Store{
		users:          map[int64]domain.User{},
		categories:     map[int64]domain.Category{},
		topics:         map[int64]domain.Topic{},
		posts:          map[int64]domain.Post{},
		notifications:  map[int64]domain.Notification{},
		topicFields:    fieldTable{},
		postFields:     fieldTable{},
		categoryFields: fieldTable{},
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for created_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Ping(context.Context) error { return nil }

// --- seeding -------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	}
	u.CreatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	c.CreatedAt = s.now()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) CreateTopic(_ context.Context, t *domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.topics[t.ID] = *t
	return nil
}

// CreatePost assigns the next post number within the topic.
func (s *Store) CreatePost(_ context.Context, p *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[p.TopicID]; !ok {
		return domain.ErrNotFound
	}
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	if p.PostNumber == 0 {
		max := 0
		for _, q := range s.posts {
			if q.TopicID == p.TopicID && q.PostNumber > max {
				max = q.PostNumber
			}
		}
		p.PostNumber = max + 1
	}
	p.CreatedAt = s.now()
	s.posts[p.ID] = *p
	return nil
}

func (s *Store) CloseTopic(_ context.Context, id int64, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Closed = closed
	s.topics[id] = t
	return nil
}

// --- reads ---------------------------------------------------------------

func (s *Store) FindUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindCategory(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindPost(_ context.Context, id int64) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPosts(_ context.Context, topicID int64) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Post
	for _, p := range s.posts {
		if p.TopicID == topicID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostNumber < out[j].PostNumber })
	return out, nil
}

func (s *Store) FindTopic(_ context.Context, id int64) (*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTopics(_ context.Context, p domain.TopicListParams) ([]domain.Topic, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		if p.CategoryID != nil && t.CategoryID != *p.CategoryID {
			continue
		}
		out = append(out, t)
	}
	sortNewestFirst(out)
	return page(out, p.Skip, p.Limit), nil
}

func (s *Store) SearchTopics(_ context.Context, q domain.TopicQuery) ([]domain.Topic, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(q.Term))
	out := make([]domain.Topic, 0)
	for _, t := range s.topics {
		if q.CategoryID != nil && t.CategoryID != *q.CategoryID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) {
			continue
		}
		if !s.hasAll(t.ID, q.WithTopicField) || s.hasAny(t.ID, q.WithoutTopicField) {
			continue
		}
		out = append(out, t)
	}
	sortNewestFirst(out)
	return page(out, 0, q.Limit), nil
}

func (s *Store) hasAll(topicID int64, names []string) bool {
	for _, n := range names {
		if _, ok := s.topicFields[topicID][n]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) hasAny(topicID int64, names []string) bool {
	for _, n := range names {
		if _, ok := s.topicFields[topicID][n]; ok {
			return true
		}
	}
	return false
}

// --- custom fields -------------------------------------------------------

func (s *Store) TopicFields(_ context.Context, ids []int64, names ...string) (map[int64]domain.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topicFields.load(ids, names), nil
}

func (s *Store) PostFields(_ context.Context, ids []int64, names ...string) (map[int64]domain.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postFields.load(ids, names), nil
}

func (s *Store) CategoryFields(_ context.Context, id int64) (domain.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryFields.load([]int64{id}, nil)[id], nil
}

func (s *Store) SaveTopicFields(_ context.Context, u domain.TopicFieldsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[u.TopicID]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Version != u.Version {
		return domain.ErrConflict
	}
	now := s.now()
	t.Version++
	t.UpdatedAt = now
	s.topics[t.ID] = t
	for _, ch := range u.Topic {
		ch.OwnerID = u.TopicID
		s.topicFields.apply(ch, now)
	}
	for _, ch := range u.Posts {
		s.postFields.apply(ch, now)
	}
	return nil
}

func (s *Store) CategoryIDsWithField(_ context.Context, name, value string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for id, fields := range s.categoryFields {
		if f, ok := fields[name]; ok && f.Value == value {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) SaveCategoryFields(ctx context.Context, categoryID int64, changes []domain.FieldChange) error {
	s.mu.Lock()
	if _, ok := s.categories[categoryID]; !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	now := s.now()
	for _, ch := range changes {
		ch.OwnerID = categoryID
		s.categoryFields.apply(ch, now)
	}
	hooks := append([]func(context.Context, int64){}, s.hooks...)
	s.mu.Unlock()

	for _, h := range hooks {
		h(ctx, categoryID)
	}
	return nil
}

func (s *Store) OnCategorySaved(hook func(ctx context.Context, categoryID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (ft fieldTable) load(ids []int64, names []string) map[int64]domain.Fields {
	out := make(map[int64]domain.Fields)
	for _, id := range ids {
		for name, f := range ft[id] {
			if len(names) > 0 && !contains(names, name) {
				continue
			}
			if out[id] == nil {
				out[id] = domain.Fields{}
			}
			out[id][name] = f.Value
		}
	}
	return out
}

func (ft fieldTable) apply(ch domain.FieldChange, now time.Time) {
	if ch.Value == nil {
		delete(ft[ch.OwnerID], ch.Name)
		return
	}
	if ft[ch.OwnerID] == nil {
		ft[ch.OwnerID] = map[string]domain.CustomField{}
	}
	f, ok := ft[ch.OwnerID][ch.Name]
	if !ok {
		f = domain.CustomField{OwnerID: ch.OwnerID, Name: ch.Name, CreatedAt: now}
	}
	f.Value = *ch.Value
	f.UpdatedAt = now
	ft[ch.OwnerID][ch.Name] = f
}

// --- notifications -------------------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID()
	n.CreatedAt = s.now()
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, q domain.NotificationQuery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var victim *domain.Notification
	for _, n := range s.notifications {
		if n.Type != q.Type || n.UserID != q.UserID || n.TopicID != q.TopicID || n.PostNumber != q.PostNumber {
			continue
		}
		if victim == nil || n.CreatedAt.After(victim.CreatedAt) ||
			(n.CreatedAt.Equal(victim.CreatedAt) && n.ID > victim.ID) {
			n := n
			victim = &n
		}
	}
	if victim == nil {
		return false, nil
	}
	delete(s.notifications, victim.ID)
	return true, nil
}

func (s *Store) ListNotifications(_ context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 60
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, 0, limit), nil
}

// --- reports -------------------------------------------------------------

func (s *Store) matchingFields(q domain.FieldCountQuery) []domain.CustomField {
	var out []domain.CustomField
	for topicID, fields := range s.topicFields {
		f, ok := fields[q.Name]
		if !ok || f.CreatedAt.Before(q.From) || f.CreatedAt.After(q.To) {
			continue
		}
		if q.CategoryID != nil {
			if t, ok := s.topics[topicID]; !ok || t.CategoryID != *q.CategoryID {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

func (s *Store) CountTopicFieldByDay(_ context.Context, q domain.FieldCountQuery) ([]domain.DayCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDay := map[string]int64{}
	for _, f := range s.matchingFields(q) {
		byDay[f.CreatedAt.UTC().Format("2006-01-02")]++
	}
	out := make([]domain.DayCount, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, domain.DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) CountTopicField(_ context.Context, q domain.FieldCountQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchingFields(q))), nil
}

func sortNewestFirst(ts []domain.Topic) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID > ts[j].ID
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

func page[T any](xs []T, skip, limit int) []T {
	if skip >= len(xs) {
		return xs[:0]
	}
	xs = xs[skip:]
	if len(xs) > limit {
		xs = xs[:limit]
	}
	return xs
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
