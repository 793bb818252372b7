package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tazhibayda/expired-service/internal/queue"
	"go.uber.org/zap"
)

// Sender delivers notification events. Delivery is a structured log line;
// an SMTP transport can replace deliver without touching the consumer.
type Sender struct {
	Log     *zap.Logger
	deliver func(to int64, subject, body string) error
}

func NewSender(l *zap.Logger) *Sender {
	s := &Sender{Log: l}
	s.deliver = s.logDelivery
	return s
}

func (s *Sender) logDelivery(to int64, subject, body string) error {
	s.Log.Info("mail sent", zap.Int64("user_id", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

var messages = map[string]string{
	"expired.expired_notification": "%s marked your post in \"%s\" as the expired answer",
}

// HandleNotification is a queue.Handler for notification.created events.
func (s *Sender) HandleNotification(ctx context.Context, body []byte) error {
	var ev queue.NotificationCreated
	if err := json.Unmarshal(body, &ev); err != nil || ev.UserID == 0 {
		s.Log.Warn("bad notification event", zap.ByteString("body", body), zap.Error(err))
		return queue.ErrDrop
	}
	tmpl, ok := messages[ev.Message]
	if !ok {
		tmpl = "%s: new activity in \"%s\""
	}
	return s.deliver(ev.UserID, ev.TopicTitle, fmt.Sprintf(tmpl, ev.DisplayUsername, ev.TopicTitle))
}
