package view

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tazhibayda/expired-service/internal/domain"
)

func TestRegistry_ProvidersAndInclusion(t *testing.T) {
	r := NewRegistry()
	r.AddTopicField("always", func(context.Context, *TopicContext) (any, bool) { return 1, true })
	r.AddTopicField("never", func(context.Context, *TopicContext) (any, bool) { return 2, false })
	r.AddListItemField("from_fields", func(_ context.Context, lc *ListItemContext) (any, bool) {
		v, ok := lc.Fields.Get("x")
		return v, ok
	})

	got := r.Topic(context.Background(), &TopicContext{Topic: &domain.Topic{ID: 1}})
	if diff := cmp.Diff(map[string]any{"always": 1}, got); diff != "" {
		t.Fatalf("topic fields (-want +got):\n%s", diff)
	}

	got = r.ListItem(context.Background(), &ListItemContext{Fields: domain.Fields{"x": "y"}})
	if diff := cmp.Diff(map[string]any{"from_fields": "y"}, got); diff != "" {
		t.Fatalf("list fields (-want +got):\n%s", diff)
	}
	if got := r.ListItem(context.Background(), &ListItemContext{}); len(got) != 0 {
		t.Fatalf("nil fields should include nothing, got %v", got)
	}
}

func TestRegistry_FieldNamesAreDeduplicated(t *testing.T) {
	r := NewRegistry()
	r.PreloadTopicFields("a", "b")
	r.PreloadTopicFields("b", "c")
	r.WhitelistPostFields("p")
	r.WhitelistPostFields("p")

	if diff := cmp.Diff([]string{"a", "b", "c"}, r.TopicFieldNames()); diff != "" {
		t.Fatalf("topic names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p"}, r.PostFieldNames()); diff != "" {
		t.Fatalf("post names (-want +got):\n%s", diff)
	}
}
