package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/repository"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

const user = "u1@example.com"

// fakeRepo delegates to a real repository over memory and can fail or
// block on demand.
type fakeRepo struct {
	next  *repository.Repository
	calls atomic.Int64
	err   error
	gate  chan struct{}
}

func newFakeRepo() *fakeRepo {
	n := 0
	return &fakeRepo{next: repository.New(memory.New(),
		repository.WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }),
		repository.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)}
}

func (f *fakeRepo) enter() error {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

func (f *fakeRepo) List(ctx context.Context, u string) ([]core.Transaction, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.next.List(ctx, u)
}

func (f *fakeRepo) Create(ctx context.Context, u string, fl core.Fields) ([]core.Transaction, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.next.Create(ctx, u, fl)
}

func (f *fakeRepo) Update(ctx context.Context, u, id string, fl core.Fields) ([]core.Transaction, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.next.Update(ctx, u, id, fl)
}

func (f *fakeRepo) Delete(ctx context.Context, u, id string) ([]core.Transaction, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.next.Delete(ctx, u, id)
}

func setup(t *testing.T) (*Session, *fakeRepo, *notify.Recorder) {
	t.Helper()
	repo := newFakeRepo()
	rec := &notify.Recorder{}
	s := New(repo, rec, log.Discard())
	s.Bind(user)
	return s, repo, rec
}

func expense(desc string, cents int64) core.Fields {
	return core.Fields{Description: desc, Amount: core.Money{Cents: cents}, Category: core.Food, Type: core.Expense}
}

func descriptions(list []core.Transaction) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Description
	}
	return out
}

// seed creates C, B, A so the list reads [A, B, C].
func seed(t *testing.T, s *Session, rec *notify.Recorder) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []string{"C", "B", "A"} {
		if err := s.Create(ctx, expense(d, 100)); err != nil {
			t.Fatalf("seed %s: %v", d, err)
		}
	}
	rec.Reset()
}

func TestLoadWithoutUser(t *testing.T) {
	repo := newFakeRepo()
	rec := &notify.Recorder{}
	s := New(repo, rec, log.Discard())

	err := s.Load(context.Background())
	if !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	st := s.State()
	if st.Err == nil || st.Err.Message != "not authenticated" || st.Err.Action != ActionReload {
		t.Fatalf("unexpected error slot %+v", st.Err)
	}
	if st.Phase() != PhaseError {
		t.Fatalf("phase = %s", st.Phase())
	}
	if repo.calls.Load() != 0 {
		t.Fatalf("repository must not be called")
	}
	if len(rec.All()) != 0 {
		t.Fatalf("load failures must not notify, got %+v", rec.All())
	}
}

func TestLoadFailureActions(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		action Action
		msg    string
	}{
		{"storage", fmt.Errorf("%w: disk gone", core.ErrStorage), ActionReload, "failed to load transactions"},
		{"timeout", fmt.Errorf("%w: list", core.ErrTimeout), ActionRetry, "request timeout"},
		{"other", errors.New("boom"), ActionRetry, "failed to load transactions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, rec := setup(t)
			repo.err = tt.err

			if err := s.Load(context.Background()); !errors.Is(err, tt.err) {
				t.Fatalf("Load() = %v, want %v", err, tt.err)
			}
			st := s.State()
			if st.IsLoading {
				t.Fatalf("loading flag left set")
			}
			if st.Err == nil || st.Err.Action != tt.action || st.Err.Message != tt.msg {
				t.Fatalf("error slot = %+v, want {%s %s}", st.Err, tt.msg, tt.action)
			}
			if len(rec.All()) != 0 {
				t.Fatalf("load failures must not notify")
			}
		})
	}
}

func TestMutationGuard(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(*Session) error{
		"create": func(s *Session) error { return s.Create(ctx, expense("A", 1)) },
		"update": func(s *Session) error { return s.Update(ctx, "id-1", expense("A", 1)) },
		"delete": func(s *Session) error { return s.Delete(ctx, "id-1") },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo()
			rec := &notify.Recorder{}
			s := New(repo, rec, log.Discard())

			if err := op(s); !errors.Is(err, core.ErrNotAuthenticated) {
				t.Fatalf("expected ErrNotAuthenticated, got %v", err)
			}
			if repo.calls.Load() != 0 {
				t.Fatalf("repository must not be called")
			}
			st := s.State()
			if st.Err == nil || st.Err.Message != "not authenticated" || st.Err.Action != ActionNone {
				t.Fatalf("unexpected error slot %+v", st.Err)
			}
			last, ok := rec.Last()
			if !ok || last.Kind != notify.Error || last.Message != "not authenticated" {
				t.Fatalf("expected error notification, got %+v", rec.All())
			}
		})
	}
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	s, _, rec := setup(t)

	if err := s.Create(ctx, expense("Lunch", 1250)); err != nil {
		t.Fatalf("create: %v", err)
	}
	st := s.State()
	if len(st.Transactions) != 1 || st.Summary.Expenses.Cents != 1250 || st.Phase() != PhaseIdle {
		t.Fatalf("unexpected state after create %+v", st)
	}
	if last, _ := rec.Last(); last.Kind != notify.Success || last.Message != "Transaction created" || last.User != user {
		t.Fatalf("unexpected notification %+v", last)
	}

	id := st.Transactions[0].ID
	if err := s.Update(ctx, id, expense("Dinner", 3000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	st = s.State()
	if st.Transactions[0].ID != id || st.Transactions[0].Description != "Dinner" || st.Summary.Expenses.Cents != 3000 {
		t.Fatalf("unexpected state after update %+v", st)
	}
	if last, _ := rec.Last(); last.Message != "Transaction updated" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestCreateFailureKeepsList(t *testing.T) {
	ctx := context.Background()
	s, repo, rec := setup(t)
	seed(t, s, rec)
	before := s.State()

	repo.err = fmt.Errorf("%w: create", core.ErrTimeout)
	if err := s.Create(ctx, expense("D", 100)); err == nil {
		t.Fatalf("expected error")
	}

	st := s.State()
	if !reflect.DeepEqual(st.Transactions, before.Transactions) || st.Summary != before.Summary {
		t.Fatalf("list changed after failed create: %v", descriptions(st.Transactions))
	}
	if st.IsCreating || st.Err == nil || st.Err.Action != ActionRetry {
		t.Fatalf("unexpected state %+v", st)
	}
	last, _ := rec.Last()
	if last.Kind != notify.Error || last.Message != st.Err.Message {
		t.Fatalf("notification %+v does not match error %+v", last, st.Err)
	}
}

func TestUpdateFailureRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	s, repo, rec := setup(t)
	seed(t, s, rec)
	before := s.State()
	target := before.Transactions[1]

	repo.err = errors.New("connection reset")
	if err := s.Update(ctx, target.ID, expense("B2", 9900)); err == nil {
		t.Fatalf("expected error")
	}

	st := s.State()
	if !reflect.DeepEqual(st.Transactions, before.Transactions) || st.Summary != before.Summary {
		t.Fatalf("list changed after failed update: %v", descriptions(st.Transactions))
	}
	if st.IsCreating {
		t.Fatalf("saving flag left set")
	}
	if st.Err == nil || st.Err.Action != ActionRetry || st.Err.Message != "failed to update transaction" {
		t.Fatalf("unexpected error slot %+v", st.Err)
	}
	last, ok := rec.Last()
	if !ok || last.Kind != notify.Error || last.Message != st.Err.Message {
		t.Fatalf("notification %+v does not match error %+v", last, st.Err)
	}
}

// interruptKV blocks reads until ctx ends, then fails with a driver error
// that does not wrap the context error.
type interruptKV struct {
	storage.KV
}

func (interruptKV) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, errors.New("interrupted (9)")
}

func TestLoadDeadlineAbortIsRetryable(t *testing.T) {
	repo := repository.New(interruptKV{KV: memory.New()}, repository.WithTimeout(10*time.Millisecond))
	s := New(repo, nil, log.Discard())
	s.Bind(user)

	if err := s.Load(context.Background()); !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	st := s.State()
	if st.Err == nil || st.Err.Action != ActionRetry || st.Err.Message != "request timeout" {
		t.Fatalf("unexpected error slot %+v", st.Err)
	}
}

func TestValidationFailureMessage(t *testing.T) {
	s, _, rec := setup(t)

	err := s.Create(context.Background(), expense("", 100))
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	st := s.State()
	if st.Err == nil || st.Err.Message != err.Error() {
		t.Fatalf("error slot %+v should carry the validation message", st.Err)
	}
	if last, _ := rec.Last(); last.Message != err.Error() {
		t.Fatalf("notification %+v should carry the validation message", last)
	}
}

func TestDeleteIsOptimistic(t *testing.T) {
	ctx := context.Background()
	s, repo, rec := setup(t)
	seed(t, s, rec)
	target := s.State().Transactions[1]

	repo.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Delete(ctx, target.ID) }()

	for repo.calls.Load() < 4 {
		time.Sleep(time.Millisecond)
	}
	st := s.State()
	if got := descriptions(st.Transactions); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("in-flight list = %v", got)
	}
	if !st.IsDeleting || st.Phase() != PhaseMutating || st.Summary.Expenses.Cents != 200 {
		t.Fatalf("unexpected in-flight state %+v", st)
	}

	close(repo.gate)
	if err := <-done; err != nil {
		t.Fatalf("delete: %v", err)
	}
	st = s.State()
	if got := descriptions(st.Transactions); !reflect.DeepEqual(got, []string{"A", "C"}) || st.IsDeleting {
		t.Fatalf("final state %v deleting=%v", got, st.IsDeleting)
	}
	if last, _ := rec.Last(); last.Kind != notify.Success || last.Message != "Transaction deleted" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestDeleteRollback(t *testing.T) {
	ctx := context.Background()
	s, repo, rec := setup(t)
	seed(t, s, rec)
	before := s.State()

	repo.err = fmt.Errorf("%w: delete", core.ErrStorage)
	if err := s.Delete(ctx, before.Transactions[1].ID); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	st := s.State()
	if got := descriptions(st.Transactions); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("rollback list = %v", got)
	}
	if !reflect.DeepEqual(st.Transactions, before.Transactions) || st.Summary != before.Summary {
		t.Fatalf("rollback did not restore the snapshot")
	}
	if st.Err == nil || st.Err.Action != ActionRetry || st.Err.Message != "failed to delete transaction" {
		t.Fatalf("unexpected error slot %+v", st.Err)
	}
	if st.IsDeleting {
		t.Fatalf("deleting flag left set")
	}
	last, _ := rec.Last()
	if last.Kind != notify.Error || last.Message != st.Err.Message {
		t.Fatalf("notification %+v does not match error", last)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retry action reloads", func(t *testing.T) {
		s, repo, _ := setup(t)
		repo.err = fmt.Errorf("%w: list", core.ErrTimeout)
		s.Load(ctx)

		repo.err = nil
		if err := s.Retry(ctx); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if st := s.State(); st.Err != nil || st.Phase() != PhaseIdle {
			t.Fatalf("expected clean state after retry, got %+v", st)
		}
	})

	t.Run("reload action is not retried", func(t *testing.T) {
		s, repo, _ := setup(t)
		repo.err = fmt.Errorf("%w: corrupt", core.ErrStorage)
		s.Load(ctx)
		calls := repo.calls.Load()

		if err := s.Retry(ctx); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if repo.calls.Load() != calls {
			t.Fatalf("retry must not reach the repository for a reload error")
		}
		if st := s.State(); st.Err == nil || st.Err.Action != ActionReload {
			t.Fatalf("error slot changed: %+v", st.Err)
		}
	})

	t.Run("no error is a no-op", func(t *testing.T) {
		s, repo, _ := setup(t)
		if err := s.Retry(ctx); err != nil || repo.calls.Load() != 0 {
			t.Fatalf("Retry without an error should do nothing")
		}
	})
}

func TestBindDiscardsStaleResults(t *testing.T) {
	ctx := context.Background()
	s, repo, rec := setup(t)
	seed(t, s, rec)

	repo.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Load(ctx) }()
	for repo.calls.Load() < 4 {
		time.Sleep(time.Millisecond)
	}

	s.Bind("other@example.com")
	close(repo.gate)
	<-done

	if st := s.State(); len(st.Transactions) != 0 || st.IsLoading {
		t.Fatalf("stale load leaked into the new binding: %+v", st)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeRepo(), nil, nil)

	if err := s.Open(ctx, auth.Static{User: auth.User{Email: user}}); err != nil || s.User() != user {
		t.Fatalf("Open bound %q, %v", s.User(), err)
	}
	if err := s.Open(ctx, auth.Static{}); err != nil || s.User() != "" {
		t.Fatalf("Open with nobody signed in bound %q, %v", s.User(), err)
	}
}

func TestStateIsACopy(t *testing.T) {
	s, _, rec := setup(t)
	seed(t, s, rec)

	st := s.State()
	st.Transactions[0].Description = "mutated"
	if s.State().Transactions[0].Description != "A" {
		t.Fatalf("State() leaked internal slice")
	}
}

func TestSalaryRentScenario(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setup(t)

	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Create(ctx, core.Fields{Description: "Salary", Amount: core.Money{Cents: 100000}, Category: core.Salary, Type: core.Income})
	s.Create(ctx, core.Fields{Description: "Rent", Amount: core.Money{Cents: 40000}, Category: core.Housing, Type: core.Expense})

	st := s.State()
	want := core.Summary{Income: core.Money{Cents: 100000}, Expenses: core.Money{Cents: 40000}, Balance: core.Money{Cents: 60000}}
	if st.Summary != want {
		t.Fatalf("summary = %+v, want %+v", st.Summary, want)
	}
	if got := descriptions(st.Transactions); !reflect.DeepEqual(got, []string{"Rent", "Salary"}) {
		t.Fatalf("order = %v", got)
	}

	if err := s.Delete(ctx, st.Transactions[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st = s.State()
	want = core.Summary{Income: core.Money{Cents: 100000}, Balance: core.Money{Cents: 100000}}
	if st.Summary != want {
		t.Fatalf("summary after delete = %+v, want %+v", st.Summary, want)
	}
}
