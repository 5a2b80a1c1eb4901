package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/example/reviewbot/internal/spaced_repetition"
	"github.com/example/reviewbot/pkg/models"
	"github.com/google/uuid"
)

// ErrConversationExists means a second review was opened for a user who already has one.
// This is a scheduler bug, never an expected runtime condition.
var ErrConversationExists = errors.New("conversation already open for user")

// Stage of an in-flight review
type Stage int

const (
	AwaitingAnswer Stage = iota + 1
	AwaitingConfirmation
)

func (s Stage) String() string {
	switch s {
	case AwaitingAnswer:
		return "awaiting_answer"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// State is the review a user is currently answering
type State struct {
	ID       string
	UserID   int64
	Stage    Stage
	Word     models.Word
	Pending  *spaced_repetition.Assessment
	OpenedAt time.Time
}

type entry struct {
	mu     sync.Mutex
	state  State
	closed bool
}

// Registry holds at most one State per user. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

// Open starts a review of word for userID in AwaitingAnswer.
// It never replaces an existing conversation.
func (r *Registry) Open(userID int64, word models.Word, now time.Time) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[userID]; ok {
		return State{}, ErrConversationExists
	}
	e := &entry{state: State{
		ID:       uuid.NewString(),
		UserID:   userID,
		Stage:    AwaitingAnswer,
		Word:     word,
		OpenedAt: now,
	}}
	r.entries[userID] = e
	return e.state, nil
}

// Get returns a copy of the user's state
func (r *Registry) Get(userID int64) (State, bool) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return State{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return State{}, false
	}
	return e.state, true
}

// With runs fn on the user's state while holding that user's lock.
// The state is removed when fn returns true. It reports whether a state existed.
func (r *Registry) With(userID int64, fn func(s *State) (remove bool)) bool {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if fn(&e.state) {
		r.closeLocked(userID, e)
	}
	return true
}

// Remove deletes the user's state and reports whether one existed
func (r *Registry) Remove(userID int64) bool {
	return r.With(userID, func(*State) bool { return true })
}

// Len returns the number of open conversations
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// closeLocked must be called with e.mu held
func (r *Registry) closeLocked(userID int64, e *entry) {
	e.closed = true
	r.mu.Lock()
	if r.entries[userID] == e {
		delete(r.entries, userID)
	}
	r.mu.Unlock()
}
