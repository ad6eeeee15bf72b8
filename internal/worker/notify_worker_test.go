package worker

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/notify"
)

func TestHandleNotification(t *testing.T) {
	rec := &notify.Recorder{}
	w := NewNotificationWorker(rec, log.Discard())
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	handle := w.Handler(context.Background())
	msgs := []*amqp.NotificationMessage{
		{User: "a@example.com", Kind: "success", Message: "Transaction created", Timestamp: at},
		{User: "a@example.com", Kind: "error", Message: "request timeout", Timestamp: at},
		{User: "b@example.com", Kind: "shout", Message: "??", Timestamp: at},
	}
	for _, m := range msgs {
		if err := handle(m); err != nil {
			t.Fatalf("handle %+v: %v", m, err)
		}
	}

	got := rec.All()
	if len(got) != 3 {
		t.Fatalf("expected 3 delivered notifications, got %d", len(got))
	}
	if got[0].Kind != notify.Success || got[0].User != "a@example.com" || !got[0].Time.Equal(at) {
		t.Errorf("unexpected first notification %+v", got[0])
	}
	if got[2].Kind != notify.Info {
		t.Errorf("unknown kind should be delivered as info, got %s", got[2].Kind)
	}

	stats := w.Stats()
	if stats[notify.Success] != 1 || stats[notify.Error] != 1 || stats[notify.Info] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
	w.LogStats(context.Background())
}

func TestHandleNotificationCancelled(t *testing.T) {
	rec := &notify.Recorder{}
	w := NewNotificationWorker(rec, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.HandleNotification(ctx, &amqp.NotificationMessage{Kind: "info"}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.All()) != 0 {
		t.Fatalf("cancelled message must not be delivered")
	}
}
