// Package worker processes notification messages consumed from the broker.
package worker

import (
	"context"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/notify"
)

// NotificationWorker forwards broker notifications to a sink and keeps
// per-kind counters.
type NotificationWorker struct {
	sink   notify.Sink
	logger *log.Logger

	mu     sync.Mutex
	counts map[notify.Kind]int
}

func NewNotificationWorker(sink notify.Sink, logger *log.Logger) *NotificationWorker {
	return &NotificationWorker{
		sink:   sink,
		logger: logger.WithComponent(log.ComponentWorker),
		counts: make(map[notify.Kind]int),
	}
}

// HandleNotification delivers one message. Unknown kinds are delivered as
// info. A cancelled context returns its error so the message is requeued.
func (w *NotificationWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kind := notify.Kind(msg.Kind)
	switch kind {
	case notify.Success, notify.Error, notify.Info, notify.Warning:
	default:
		w.logger.WarnContext(ctx, "Unknown notification kind", "kind", msg.Kind, log.FieldUser, msg.User)
		kind = notify.Info
	}

	w.sink.Notify(ctx, notify.Notification{
		User:    msg.User,
		Kind:    kind,
		Message: msg.Message,
		Time:    msg.Timestamp,
	})

	w.mu.Lock()
	w.counts[kind]++
	w.mu.Unlock()
	return nil
}

// Handler adapts HandleNotification to amqp.Client.ConsumeNotifications.
func (w *NotificationWorker) Handler(ctx context.Context) func(*amqp.NotificationMessage) error {
	return func(msg *amqp.NotificationMessage) error {
		return w.HandleNotification(ctx, msg)
	}
}

// Stats returns how many notifications of each kind were handled.
func (w *NotificationWorker) Stats() map[notify.Kind]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[notify.Kind]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// LogStats writes the counters as one log record.
func (w *NotificationWorker) LogStats(ctx context.Context) {
	stats := w.Stats()
	w.logger.InfoContext(ctx, "Notification stats",
		string(notify.Success), stats[notify.Success],
		string(notify.Error), stats[notify.Error],
		string(notify.Info), stats[notify.Info],
		string(notify.Warning), stats[notify.Warning])
}
