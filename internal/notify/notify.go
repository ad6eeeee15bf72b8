// Package notify delivers transient user-facing messages about the outcome
// of an operation. Delivery is fire-and-forget: sinks never return errors.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
	Warning Kind = "warning"
)

type Notification struct {
	User    string
	Kind    Kind
	Message string
	Time    time.Time
}

type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to a Sink.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Sink = Func(func(context.Context, Notification) {})

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

// LogSink writes notifications as structured log records.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent(log.ComponentNotify)}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) {
	args := []any{log.FieldUser, n.User, "kind", string(n.Kind), "message", n.Message}
	switch n.Kind {
	case Error:
		s.logger.ErrorContext(ctx, "Notification", args...)
	case Warning:
		s.logger.WarnContext(ctx, "Notification", args...)
	default:
		s.logger.InfoContext(ctx, "Notification", args...)
	}
}

// WriterSink prints one line per notification, for a terminal.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Notify(_ context.Context, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "[%s] %s\n", n.Kind, n.Message)
}

// Publisher is the broker side of BrokerSink. *amqp.Client satisfies it.
type Publisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// BrokerSink forwards notifications to a message broker. Publish failures
// are logged and dropped.
type BrokerSink struct {
	pub    Publisher
	logger *log.Logger
}

func NewBrokerSink(pub Publisher, logger *log.Logger) *BrokerSink {
	return &BrokerSink{pub: pub, logger: logger.WithComponent(log.ComponentNotify)}
}

func (s *BrokerSink) Notify(ctx context.Context, n Notification) {
	msg := amqp.NewNotificationMessage(n.User, string(n.Kind), n.Message)
	if !n.Time.IsZero() {
		msg.Timestamp = n.Time
	}
	if err := s.pub.PublishNotification(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish notification",
			log.FieldUser, n.User,
			log.FieldOperation, log.OpNotify,
			log.FieldError, err)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
