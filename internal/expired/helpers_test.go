package expired

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/queue"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/repo/memstore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type published struct {
	Key   string
	Event any
}

type recordingPub struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPub) Publish(_ context.Context, _, key string, event any, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key, event})
	return nil
}

func (p *recordingPub) Close() error { return nil }

func (p *recordingPub) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Key
	}
	return out
}

// fixture is topic T1 in an enabled category, authored by U1, with P1 by U1
// and P2 by U2. Mod is a moderator, Stranger a plain user.
type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	clock    *fakeClock
	limiter  *ratelimit.Memory
	pub      *recordingPub
	cache    *CategoryCache
	policy   *Policy
	svc      *Service
	U1, U2   *domain.User
	Mod      *domain.User
	Stranger *domain.User
	Cat      *domain.Category
	Disabled *domain.Category
	T1       *domain.Topic
	P1, P2   *domain.Post
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	st := memstore.New().WithClock(clock.now)
	f := &fixture{
		ctx:      ctx,
		store:    st,
		clock:    clock,
		limiter:  ratelimit.NewMemory().WithClock(clock.now),
		pub:      &recordingPub{},
		U1:       &domain.User{Username: "alice"},
		U2:       &domain.User{Username: "bob"},
		Mod:      &domain.User{Username: "mod", Moderator: true},
		Stranger: &domain.User{Username: "eve"},
		Cat:      &domain.Category{Name: "Support"},
		Disabled: &domain.Category{Name: "Off topic"},
	}
	for _, u := range []*domain.User{f.U1, f.U2, f.Mod, f.Stranger} {
		must(t, st.CreateUser(ctx, u))
	}
	must(t, st.CreateCategory(ctx, f.Cat))
	must(t, st.CreateCategory(ctx, f.Disabled))
	must(t, st.SaveCategoryFields(ctx, f.Cat.ID, []domain.FieldChange{EnableCategory(f.Cat.ID, true)}))

	f.T1 = &domain.Topic{CategoryID: f.Cat.ID, UserID: f.U1.ID, Title: "How do I reset my password?"}
	must(t, st.CreateTopic(ctx, f.T1))
	f.P1 = &domain.Post{TopicID: f.T1.ID, UserID: f.U1.ID, Raw: "question"}
	must(t, st.CreatePost(ctx, f.P1))
	f.P2 = &domain.Post{TopicID: f.T1.ID, UserID: f.U2.ID, Raw: "answer"}
	must(t, st.CreatePost(ctx, f.P2))

	f.cache = NewCategoryCache(st, nil)
	st.OnCategorySaved(f.cache.OnCategorySaved)
	f.policy = &Policy{Categories: f.cache}
	f.svc = NewService(st, f.policy, f.limiter, f.pub, nil, opts)
	return f
}

func (f *fixture) topicField(t *testing.T) (string, bool) {
	t.Helper()
	m, err := f.store.TopicFields(f.ctx, []int64{f.T1.ID}, TopicFieldExpiredPostID)
	must(t, err)
	return m[f.T1.ID].Get(TopicFieldExpiredPostID)
}

func (f *fixture) flagged(t *testing.T, postIDs ...int64) []int64 {
	t.Helper()
	m, err := f.store.PostFields(f.ctx, postIDs, PostFieldIsExpired)
	must(t, err)
	var out []int64
	for _, id := range postIDs {
		if IsExpiredPost(m[id]) {
			out = append(out, id)
		}
	}
	return out
}

func (f *fixture) notifications(t *testing.T, u *domain.User) []domain.Notification {
	t.Helper()
	ns, err := f.store.ListNotifications(f.ctx, u.ID, 0)
	must(t, err)
	return ns
}

func (f *fixture) newTopic(t *testing.T, categoryID int64, author *domain.User, title string) *domain.Topic {
	t.Helper()
	tp := &domain.Topic{CategoryID: categoryID, UserID: author.ID, Title: title}
	must(t, f.store.CreateTopic(f.ctx, tp))
	must(t, f.store.CreatePost(f.ctx, &domain.Post{TopicID: tp.ID, UserID: author.ID}))
	return tp
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

var _ queue.Publisher = (*recordingPub)(nil)
