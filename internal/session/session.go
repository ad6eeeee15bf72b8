// Package session holds one user's in-memory view of their transactions
// and drives every change through the repository.
//
// The session is a cache over the repository: after any successful call it
// adopts the list the repository returned, and a Load can always reconcile
// it. Deletes are applied locally before the repository answers and rolled
// back to the exact snapshot if the call fails. Creates and updates leave
// the list alone until the authoritative result arrives.
//
// Every mutation outcome is reported to a notify.Sink. Load failures only
// set the error slot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/notify"
)

// Action tells the caller how to recover from the current error.
type Action string

const (
	// ActionRetry means Retry will reload in place.
	ActionRetry Action = "retry"
	// ActionReload means the session must be rebound to an identity.
	ActionReload Action = "reload"
	// ActionNone means nothing can be retried.
	ActionNone Action = "none"
)

type Error struct {
	Message string
	Action  Action
}

func (e *Error) Error() string { return e.Message }

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseMutating Phase = "mutating"
	PhaseError    Phase = "error"
)

// State is a snapshot of the session. IsCreating covers both create and
// update, the two save paths.
type State struct {
	Transactions []core.Transaction
	Summary      core.Summary
	Err          *Error
	IsLoading    bool
	IsCreating   bool
	IsDeleting   bool
}

// Phase derives the state machine position from the flags and error slot.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.IsCreating, s.IsDeleting:
		return PhaseMutating
	case s.Err != nil:
		return PhaseError
	default:
		return PhaseIdle
	}
}

func (s State) clone() State {
	c := s
	c.Transactions = append(make([]core.Transaction, 0, len(s.Transactions)), s.Transactions...)
	if s.Err != nil {
		e := *s.Err
		c.Err = &e
	}
	return c
}

// Repository is the persistence the session drives. *repository.Repository
// satisfies it.
type Repository interface {
	List(ctx context.Context, user string) ([]core.Transaction, error)
	Create(ctx context.Context, user string, f core.Fields) ([]core.Transaction, error)
	Update(ctx context.Context, user, id string, f core.Fields) ([]core.Transaction, error)
	Delete(ctx context.Context, user, id string) ([]core.Transaction, error)
}

const (
	msgNotAuthenticated = "not authenticated"
	msgTimeout          = "request timeout"
)

// Session is safe for concurrent use. The lock is never held across a
// repository call, so the busy flags are observable while one is in
// flight. Two mutations may still race; the later result wins.
type Session struct {
	repo   Repository
	sink   notify.Sink
	logger *log.Logger

	mu    sync.Mutex
	user  string
	gen   uint64
	state State
}

// New returns an unbound session. A nil sink drops notifications.
func New(repo Repository, sink notify.Sink, logger *log.Logger) *Session {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Session{
		repo:   repo,
		sink:   sink,
		logger: logger.WithComponent(log.ComponentSession),
		state:  State{Transactions: []core.Transaction{}},
	}
}

// Bind switches the session to user and resets all state. An empty user
// unbinds it. Results of calls started before Bind are discarded.
func (s *Session) Bind(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.gen++
	s.state = State{Transactions: []core.Transaction{}}
}

// Open binds the session to whoever id reports as signed in, or unbinds it
// when nobody is.
func (s *Session) Open(ctx context.Context, id auth.Identity) error {
	u, ok, err := id.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("resolve current user: %w", err)
	}
	if !ok {
		u = auth.User{}
	}
	s.Bind(u.Email)
	return nil
}

func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// State returns a deep copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Load replaces the list with the repository's. Without a bound user it
// fails with a reload action and never reaches the repository.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	user, gen := s.user, s.gen
	if user == "" {
		s.state.Err = &Error{Message: msgNotAuthenticated, Action: ActionReload}
		s.mu.Unlock()
		return core.ErrNotAuthenticated
	}
	s.state.IsLoading = true
	s.state.Err = nil
	s.mu.Unlock()

	list, err := s.repo.List(ctx, user)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return err
	}
	s.state.IsLoading = false
	if err != nil {
		action := ActionRetry
		if errors.Is(err, core.ErrStorage) {
			action = ActionReload
		}
		s.state.Err = &Error{Message: message(err, "load transactions"), Action: action}
		s.logError(ctx, "Failed to load transactions", err, log.OpLoad, user)
		return err
	}
	s.adopt(list)
	s.logger.DebugContext(ctx, "Transactions loaded", log.FieldUser, user, log.FieldCount, len(list))
	return nil
}

// Refresh is Load.
func (s *Session) Refresh(ctx context.Context) error { return s.Load(ctx) }

// Retry reloads when the current error allows it. Otherwise it does nothing.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Err == nil || s.state.Err.Action != ActionRetry {
		s.mu.Unlock()
		return nil
	}
	s.state.Err = nil
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Retrying load", log.FieldOperation, log.OpRetry)
	return s.Load(ctx)
}

// Create stores a new transaction. The list is only replaced once the
// repository answers.
func (s *Session) Create(ctx context.Context, f core.Fields) error {
	return s.save(ctx, log.OpCreate, "Transaction created", func(user string) ([]core.Transaction, error) {
		return s.repo.Create(ctx, user, f)
	})
}

// Update edits transaction id. The list is only replaced once the
// repository answers.
func (s *Session) Update(ctx context.Context, id string, f core.Fields) error {
	return s.save(ctx, log.OpUpdate, "Transaction updated", func(user string) ([]core.Transaction, error) {
		return s.repo.Update(ctx, user, id, f)
	})
}

func (s *Session) save(ctx context.Context, op, success string, call func(user string) ([]core.Transaction, error)) error {
	user, gen, snapshot, ok := s.begin(ctx, op, func(st *State) { st.IsCreating = true })
	if !ok {
		return core.ErrNotAuthenticated
	}

	list, err := call(user)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return err
	}
	s.state.IsCreating = false
	return s.finish(ctx, op, user, success, list, snapshot, err)
}

// Delete removes transaction id from the local list right away, then asks
// the repository. On failure the exact previous list comes back.
func (s *Session) Delete(ctx context.Context, id string) error {
	user, gen, snapshot, ok := s.begin(ctx, log.OpDelete, func(st *State) {
		st.IsDeleting = true
		kept := make([]core.Transaction, 0, len(st.Transactions))
		for _, t := range st.Transactions {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		st.Transactions = kept
		st.Summary = core.Summarize(kept)
	})
	if !ok {
		return core.ErrNotAuthenticated
	}

	list, err := s.repo.Delete(ctx, user, id)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return err
	}
	s.state.IsDeleting = false
	return s.finish(ctx, log.OpDelete, user, "Transaction deleted", list, snapshot, err)
}

// begin applies the authentication guard, clears the error slot, snapshots
// the list and runs mark under the lock.
func (s *Session) begin(ctx context.Context, op string, mark func(*State)) (user string, gen uint64, snapshot []core.Transaction, ok bool) {
	s.mu.Lock()
	user, gen = s.user, s.gen
	if user == "" {
		s.state.Err = &Error{Message: msgNotAuthenticated, Action: ActionNone}
		s.mu.Unlock()

		s.logError(ctx, "Mutation rejected", core.ErrNotAuthenticated, op, "")
		s.notify(ctx, "", notify.Error, msgNotAuthenticated)
		return "", 0, nil, false
	}

	snapshot = s.state.Transactions
	s.state.Err = nil
	mark(&s.state)
	s.mu.Unlock()
	return user, gen, snapshot, true
}

// finish must be entered with s.mu held. It releases it before notifying.
func (s *Session) finish(ctx context.Context, op, user, success string, list, snapshot []core.Transaction, err error) error {
	if err != nil {
		msg := message(err, op+" transaction")
		s.state.Transactions = snapshot
		s.state.Summary = core.Summarize(snapshot)
		s.state.Err = &Error{Message: msg, Action: ActionRetry}
		s.mu.Unlock()

		s.logError(ctx, "Mutation failed", err, op, user)
		s.notify(ctx, user, notify.Error, msg)
		return err
	}

	s.adopt(list)
	s.mu.Unlock()

	s.notify(ctx, user, notify.Success, success)
	return nil
}

// adopt must be called with s.mu held.
func (s *Session) adopt(list []core.Transaction) {
	if list == nil {
		list = []core.Transaction{}
	}
	s.state.Transactions = list
	s.state.Summary = core.Summarize(list)
	s.state.Err = nil
}

func (s *Session) notify(ctx context.Context, user string, kind notify.Kind, msg string) {
	s.sink.Notify(ctx, notify.Notification{User: user, Kind: kind, Message: msg, Time: time.Now()})
}

func (s *Session) logError(ctx context.Context, msg string, err error, op, user string) {
	log.NewStructuredLogger(s.logger).LogError(ctx, msg, err, op, log.NewFields().WithUser(user))
}

// message turns err into the text shown to the user.
func message(err error, what string) string {
	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		return msgNotAuthenticated
	case errors.Is(err, core.ErrTimeout):
		return msgTimeout
	case errors.Is(err, core.ErrValidation):
		return err.Error()
	default:
		return "failed to " + what
	}
}
