// Package repository implements transaction CRUD over a storage.KV.
//
// Every operation returns the complete list for the user, newest first, so
// callers can treat each result as an authoritative snapshot.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultTimeout bounds a single repository call.
const DefaultTimeout = 5 * time.Second

type Repository struct {
	kv      storage.KV
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type Option func(*Repository)

// WithTimeout sets the per-call deadline. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) { r.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) { r.logger = logger.WithComponent(log.ComponentRepository) }
}

func New(kv storage.KV, opts ...Option) *Repository {
	r := &Repository{
		kv:      kv,
		logger:  log.Discard(),
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the user's transactions. A user with no data gets an empty,
// non-nil slice.
func (r *Repository) List(ctx context.Context, user string) ([]core.Transaction, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	list, err := r.read(ctx, user)
	if err != nil {
		return nil, r.fail(ctx, err, log.OpList, user)
	}
	return list, nil
}

// Create stores a new transaction in front of the existing ones.
func (r *Repository) Create(ctx context.Context, user string, f core.Fields) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	list, err := r.read(ctx, user)
	if err != nil {
		return nil, r.fail(ctx, err, log.OpCreate, user)
	}

	t := core.Transaction{ID: r.newID(), Date: r.now()}.Apply(f)
	next := make([]core.Transaction, 0, len(list)+1)
	next = append(next, t)
	next = append(next, list...)

	if err := r.write(ctx, user, next); err != nil {
		return nil, r.fail(ctx, err, log.OpCreate, user)
	}

	log.NewStructuredLogger(r.logger).LogTransaction(ctx, "Transaction created", log.OpCreate, user, t)
	return next, nil
}

// Update replaces the editable fields of transaction id. An unknown id
// leaves the list untouched and is not an error.
func (r *Repository) Update(ctx context.Context, user, id string, f core.Fields) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	list, err := r.read(ctx, user)
	if err != nil {
		return nil, r.fail(ctx, err, log.OpUpdate, user)
	}

	idx := indexOf(list, id)
	if idx < 0 {
		r.logger.DebugContext(ctx, "Update of unknown transaction ignored", log.FieldUser, user, log.FieldTxID, id)
		return list, nil
	}

	next := append([]core.Transaction(nil), list...)
	next[idx] = next[idx].Apply(f)

	if err := r.write(ctx, user, next); err != nil {
		return nil, r.fail(ctx, err, log.OpUpdate, user)
	}

	log.NewStructuredLogger(r.logger).LogTransaction(ctx, "Transaction updated", log.OpUpdate, user, next[idx])
	return next, nil
}

// Delete removes transaction id. An unknown id is not an error.
func (r *Repository) Delete(ctx context.Context, user, id string) ([]core.Transaction, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	list, err := r.read(ctx, user)
	if err != nil {
		return nil, r.fail(ctx, err, log.OpDelete, user)
	}

	idx := indexOf(list, id)
	if idx < 0 {
		r.logger.DebugContext(ctx, "Delete of unknown transaction ignored", log.FieldUser, user, log.FieldTxID, id)
		return list, nil
	}

	removed := list[idx]
	next := make([]core.Transaction, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)

	if err := r.write(ctx, user, next); err != nil {
		return nil, r.fail(ctx, err, log.OpDelete, user)
	}

	log.NewStructuredLogger(r.logger).LogTransaction(ctx, "Transaction deleted", log.OpDelete, user, removed)
	return next, nil
}

func (r *Repository) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository) read(ctx context.Context, user string) ([]core.Transaction, error) {
	raw, ok, err := r.kv.Get(ctx, storage.TransactionsKey(user))
	if err != nil {
		return nil, err
	}
	list := []core.Transaction{}
	if !ok || len(raw) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: decode transactions: %v", core.ErrStorage, err)
	}
	if list == nil {
		list = []core.Transaction{}
	}
	return list, nil
}

func (r *Repository) write(ctx context.Context, user string, list []core.Transaction) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: encode transactions: %v", core.ErrStorage, err)
	}
	return r.kv.Set(ctx, storage.TransactionsKey(user), raw)
}

// fail classifies err as a timeout or storage failure and logs it. ctx must
// be the one carrying the deadline: drivers abort on it with errors of
// their own.
func (r *Repository) fail(ctx context.Context, err error, op, user string) error {
	switch {
	case errors.Is(err, core.ErrTimeout):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w: %s: %v", core.ErrTimeout, op, err)
	case errors.Is(err, core.ErrStorage):
	default:
		err = fmt.Errorf("%w: %s: %v", core.ErrStorage, op, err)
	}

	log.NewStructuredLogger(r.logger).LogError(ctx, "Repository operation failed", err, op, log.NewFields().WithUser(user))
	return err
}

func indexOf(list []core.Transaction, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}
