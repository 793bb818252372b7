package mail

import (
	"context"
	"testing"

	"github.com/tazhibayda/expired-service/internal/queue"
	"go.uber.org/zap"
)

func TestHandleNotification(t *testing.T) {
	s := NewSender(zap.NewNop())
	var gotTo int64
	var gotBody string
	s.deliver = func(to int64, _, body string) error {
		gotTo, gotBody = to, body
		return nil
	}

	body := []byte(`{"notification_id":1,"user_id":42,"topic_id":3,"post_number":2,` +
		`"message":"expired.expired_notification","display_username":"alice","topic_title":"Printer on fire"}`)
	if err := s.HandleNotification(context.Background(), body); err != nil {
		t.Fatal(err)
	}
	if gotTo != 42 {
		t.Fatalf("to = %d", gotTo)
	}
	want := `alice marked your post in "Printer on fire" as the expired answer`
	if gotBody != want {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestHandleNotification_DropsGarbage(t *testing.T) {
	s := NewSender(zap.NewNop())
	if err := s.HandleNotification(context.Background(), []byte("not json")); err != queue.ErrDrop {
		t.Fatalf("want ErrDrop, got %v", err)
	}
}
