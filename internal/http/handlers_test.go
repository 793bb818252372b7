package http_test

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/expired"
)

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, 0)
	w := e.do(http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestExpire_Flow(t *testing.T) {
	e := newTestEnv(t, 0)
	id := strconv.FormatInt(e.Reply.ID, 10)

	if w := e.do(http.MethodPost, "/solution/expire?id="+id, nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/solution/expire?id="+id, e.Author, nil); w.Code != http.StatusForbidden {
		t.Fatalf("disabled category: %d %s", w.Code, w.Body.String())
	}

	e.enableCategory()

	w := e.do(http.MethodPost, "/solution/expire", e.Author, map[string]any{"id": e.Reply.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expire: %d %s", w.Code, w.Body.String())
	}
	if diff := cmp.Diff(map[string]any{"success": "OK"}, decode(t, w)); diff != "" {
		t.Fatalf("body (-want +got):\n%s", diff)
	}

	tv := decode(t, e.do(http.MethodGet, "/t/"+strconv.FormatInt(e.Topic.ID, 10), e.Author, nil))
	want := map[string]any{"post_number": float64(e.Reply.PostNumber), "username": "bob"}
	if diff := cmp.Diff(want, tv["expired_topic"]); diff != "" {
		t.Fatalf("expired_topic (-want +got):\n%s", diff)
	}

	pv := decode(t, e.do(http.MethodGet, "/posts/"+id, e.Author, nil))
	if pv["expired_topic"] != true || pv["can_unexpire_answer"] != true || pv["can_expire_answer"] != false {
		t.Fatalf("post view = %v", pv)
	}

	list := decode(t, e.do(http.MethodGet, "/latest", nil, nil))
	topics := list["topic_list"].(map[string]any)["topics"].([]any)
	if len(topics) != 1 || topics[0].(map[string]any)["has_expired_topic"] != true {
		t.Fatalf("latest = %v", topics)
	}

	ns := decode(t, e.do(http.MethodGet, "/notifications", e.Replier, nil))["notifications"].([]any)
	if len(ns) != 1 {
		t.Fatalf("notifications = %v", ns)
	}

	w = e.doForm("/solution/unexpire", e.Author, url.Values{"id": {id}})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpire: %d %s", w.Code, w.Body.String())
	}
	tv = decode(t, e.do(http.MethodGet, "/t/"+strconv.FormatInt(e.Topic.ID, 10), nil, nil))
	if _, ok := tv["expired_topic"]; ok {
		t.Fatalf("expired_topic after unexpire: %v", tv["expired_topic"])
	}
	ns = decode(t, e.do(http.MethodGet, "/notifications", e.Replier, nil))["notifications"].([]any)
	if len(ns) != 0 {
		t.Fatalf("notification not removed: %v", ns)
	}
}

func TestExpire_BadInput(t *testing.T) {
	e := newTestEnv(t, 0)
	e.enableCategory()

	cases := []struct {
		name string
		path string
		want int
	}{
		{"missing id", "/solution/expire", http.StatusBadRequest},
		{"non-numeric id", "/solution/expire?id=abc", http.StatusBadRequest},
		{"negative id", "/solution/expire?id=-3", http.StatusBadRequest},
		{"unknown post", "/solution/expire?id=99999", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := e.do(http.MethodPost, tc.path, e.Author, nil); w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	if w := e.do(http.MethodPost, "/solution/expire?id=1", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/notifications", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("notifications without token: %d", w.Code)
	}
}

func TestExpire_RateLimited(t *testing.T) {
	e := newTestEnv(t, 0)
	e.enableCategory()
	path := "/solution/expire?id=" + strconv.FormatInt(e.Reply.ID, 10)

	for i := 0; i < 4; i++ {
		if w := e.do(http.MethodPost, path, e.Author, nil); w.Code != http.StatusOK {
			t.Fatalf("call %d: %d %s", i+1, w.Code, w.Body.String())
		}
	}
	w := e.do(http.MethodPost, path, e.Author, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("5th call: %d", w.Code)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 || ra > 30 {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if decode(t, w)["retry_after"] == nil {
		t.Fatal("retry_after missing from body")
	}

	for i := 0; i < 6; i++ {
		if w := e.do(http.MethodPost, path, e.Admin, nil); w.Code != http.StatusOK {
			t.Fatalf("admin call %d: %d", i+1, w.Code)
		}
	}
}

func TestSearch(t *testing.T) {
	e := newTestEnv(t, 0)
	e.enableCategory()
	other := &domain.Topic{CategoryID: e.Cat.ID, UserID: e.Replier.ID, Title: "Printer offline"}
	mustDo(t, e.Store.CreateTopic(e.Ctx, other))

	if w := e.do(http.MethodPost, "/solution/expire?id="+strconv.FormatInt(e.Reply.ID, 10), e.Author, nil); w.Code != http.StatusOK {
		t.Fatalf("expire: %d", w.Code)
	}

	ids := func(q string) []float64 {
		t.Helper()
		w := e.do(http.MethodGet, "/search?q="+url.QueryEscape(q), nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("search %q: %d", q, w.Code)
		}
		var out []float64
		for _, it := range decode(t, w)["topics"].([]any) {
			out = append(out, it.(map[string]any)["id"].(float64))
		}
		return out
	}
	if diff := cmp.Diff([]float64{float64(e.Topic.ID)}, ids("in:expired")); diff != "" {
		t.Fatalf("in:expired (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{float64(other.ID)}, ids("in:unexpired")); diff != "" {
		t.Fatalf("in:unexpired (-want +got):\n%s", diff)
	}
}

func TestSearch_RateLimitedByIP(t *testing.T) {
	e := newTestEnv(t, 2)
	for i := 0; i < 2; i++ {
		if w := e.do(http.MethodGet, "/search?q=vpn", nil, nil); w.Code != http.StatusOK {
			t.Fatalf("search %d: %d", i+1, w.Code)
		}
	}
	if w := e.do(http.MethodGet, "/search?q=vpn", nil, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd search: %d", w.Code)
	}
}

func TestAdmin(t *testing.T) {
	e := newTestEnv(t, 0)

	if w := e.do(http.MethodGet, "/admin/reports", e.Author, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-staff reports: %d", w.Code)
	}
	list := decode(t, e.do(http.MethodGet, "/admin/reports", e.Admin, nil))
	if diff := cmp.Diff([]any{expired.ReportName}, list["reports"]); diff != "" {
		t.Fatalf("reports (-want +got):\n%s", diff)
	}

	e.enableCategory()
	if w := e.do(http.MethodPost, "/solution/expire?id="+strconv.FormatInt(e.Reply.ID, 10), e.Author, nil); w.Code != http.StatusOK {
		t.Fatalf("expire: %d", w.Code)
	}
	w := e.do(http.MethodGet, "/admin/reports/expired_topic", e.Admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: %d %s", w.Code, w.Body.String())
	}
	rep := decode(t, w)["report"].(map[string]any)
	if rep["type"] != expired.ReportName || rep["total"] != float64(1) || len(rep["data"].([]any)) != 1 {
		t.Fatalf("report = %v", rep)
	}

	if w := e.do(http.MethodGet, "/admin/reports/nope", e.Admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown report: %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/admin/reports/expired_topic?start_date=bad", e.Admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", w.Code)
	}

	w = e.do(http.MethodPut, "/admin/categories/"+strconv.FormatInt(e.Cat.ID, 10)+"/custom_fields", e.Admin,
		map[string]any{"custom_fields": map[string]any{expired.CategoryFieldEnabled: nil}})
	if w.Code != http.StatusOK || decode(t, w)["enable_expired_topics"] != false {
		t.Fatalf("disable: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPost, "/solution/unexpire?id="+strconv.FormatInt(e.Reply.ID, 10), e.Author, nil); w.Code != http.StatusForbidden {
		t.Fatalf("unexpire after disabling: %d", w.Code)
	}
}
