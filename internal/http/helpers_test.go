package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/expired"
	api "github.com/tazhibayda/expired-service/internal/http"
	"github.com/tazhibayda/expired-service/internal/queue"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/repo/memstore"
	"github.com/tazhibayda/expired-service/internal/report"
	"github.com/tazhibayda/expired-service/internal/search"
	"github.com/tazhibayda/expired-service/internal/security"
	"github.com/tazhibayda/expired-service/internal/view"
)

const testSecret = "test_secret"

type testEnv struct {
	T      *testing.T
	Ctx    context.Context
	Store  *memstore.Store
	Router *gin.Engine

	Author, Replier, Admin, Stranger *domain.User
	Cat                              *domain.Category
	Topic                            *domain.Topic
	Reply                            *domain.Post
}

func newTestEnv(t *testing.T, searchPerMin int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	st := memstore.New()

	e := &testEnv{
		T: t, Ctx: ctx, Store: st,
		Author:   &domain.User{Username: "alice"},
		Replier:  &domain.User{Username: "bob"},
		Admin:    &domain.User{Username: "root", Admin: true},
		Stranger: &domain.User{Username: "eve"},
		Cat:      &domain.Category{Name: "Support", Slug: "support"},
	}
	for _, u := range []*domain.User{e.Author, e.Replier, e.Admin, e.Stranger} {
		mustDo(t, st.CreateUser(ctx, u))
	}
	mustDo(t, st.CreateCategory(ctx, e.Cat))
	e.Topic = &domain.Topic{CategoryID: e.Cat.ID, UserID: e.Author.ID, Title: "VPN keeps dropping"}
	mustDo(t, st.CreateTopic(ctx, e.Topic))
	mustDo(t, st.CreatePost(ctx, &domain.Post{TopicID: e.Topic.ID, UserID: e.Author.ID, Raw: "help"}))
	e.Reply = &domain.Post{TopicID: e.Topic.ID, UserID: e.Replier.ID, Raw: "update the client"}
	mustDo(t, st.CreatePost(ctx, e.Reply))

	cache := expired.NewCategoryCache(st, nil)
	st.OnCategorySaved(cache.OnCategorySaved)
	policy := &expired.Policy{Categories: cache}
	limiter := ratelimit.NewMemory()
	svc := expired.NewService(st, policy, limiter, queue.NewNoop(), nil, expired.Options{})

	views, filters, reports := view.NewRegistry(), search.NewRegistry(), report.NewRegistry()
	(&expired.Projections{Store: st, Policy: policy}).Register(views, filters)
	expired.RegisterReport(reports, st)

	h := api.NewHandler(st, svc, views, &search.Service{Store: st, Registry: filters}, reports, limiter, searchPerMin)
	e.Router = api.NewRouter(h, security.HMACVerifier{Secret: testSecret})
	return e
}

func (e *testEnv) token(u *domain.User) string {
	e.T.Helper()
	tok, err := security.MakeAccess(testSecret, strconv.FormatInt(u.ID, 10), u.Username, time.Minute)
	mustDo(e.T, err)
	return tok
}

// do sends body as JSON when it is not nil.
func (e *testEnv) do(method, path string, u *domain.User, body any) *httptest.ResponseRecorder {
	e.T.Helper()
	var buf bytes.Buffer
	if body != nil {
		mustDo(e.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(u))
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doForm(path string, u *domain.User, form url.Values) *httptest.ResponseRecorder {
	e.T.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+e.token(u))
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) enableCategory() {
	e.T.Helper()
	w := e.do(http.MethodPut, "/admin/categories/"+strconv.FormatInt(e.Cat.ID, 10)+"/custom_fields", e.Admin,
		map[string]any{"custom_fields": map[string]any{expired.CategoryFieldEnabled: "true"}})
	if w.Code != http.StatusOK {
		e.T.Fatalf("enable category: %d %s", w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
