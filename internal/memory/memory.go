// Package memory provides the in-process conversation memory store.
//
// One ConversationMemory record exists per user id for the lifetime of the
// process. The store also owns the per-user locks that serialise conversational
// turns for the same user while letting different users proceed in parallel.
package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/autofondo/barbara/internal/models"
)

// Opts holds configuration options for the memory store.
type Opts struct {
	MaxHistoryTurns int
}

// Option defines a configuration option for the memory store.
type Option func(*Opts)

// WithMaxHistoryTurns caps the number of stored turns per user.
func WithMaxHistoryTurns(n int) Option {
	return func(o *Opts) {
		o.MaxHistoryTurns = n
	}
}

// Store keeps one ConversationMemory per user id, guarded by a registry mutex,
// plus one mutex per user for turn-level serialisation.
type Store struct {
	mu              sync.RWMutex
	records         map[string]*models.ConversationMemory
	userLocks       map[string]*sync.Mutex
	maxHistoryTurns int
	now             func() time.Time
}

// NewStore creates a memory store, applying any provided options.
func NewStore(opts ...Option) *Store {
	cfg := Opts{MaxHistoryTurns: models.MaxHistoryTurns}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = models.MaxHistoryTurns
	}
	slog.Debug("Memory store created", "max_history_turns", cfg.MaxHistoryTurns)
	return &Store{
		records:         make(map[string]*models.ConversationMemory),
		userLocks:       make(map[string]*sync.Mutex),
		maxHistoryTurns: cfg.MaxHistoryTurns,
		now:             time.Now,
	}
}

// newMemory builds a fresh record in the INITIAL state.
func newMemory(userID string, now time.Time) *models.ConversationMemory {
	return &models.ConversationMemory{
		UserID:          userID,
		State:           models.StateInitial,
		RetriesPerState: make(map[models.ConversationState]int),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// LockUser acquires the serialisation lock for a user id and returns the
// release function. Turns for the same user must run under this lock from
// get-or-create through history append.
func (s *Store) LockUser(userID string) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetOrCreate returns the memory record for the user, creating it lazily on
// first contact. It never fails: if the store is unusable it hands back a
// fresh ephemeral record so the caller always has something to mutate.
func (s *Store) GetOrCreate(userID string) *models.ConversationMemory {
	if s == nil {
		slog.Error("Memory store GetOrCreate on nil store, returning ephemeral record", "user_id", userID)
		return newMemory(userID, time.Now())
	}

	s.mu.RLock()
	mem, ok := s.records[userID]
	s.mu.RUnlock()
	if ok {
		return mem
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mem, ok = s.records[userID]; ok {
		return mem
	}
	if s.records == nil {
		slog.Error("Memory store registry missing, returning ephemeral record", "user_id", userID)
		return newMemory(userID, s.now())
	}
	mem = newMemory(userID, s.now())
	s.records[userID] = mem
	slog.Debug("Memory record created", "user_id", userID)
	return mem
}

// SetName records the user's name once. Later extractions never overwrite it.
func (s *Store) SetName(mem *models.ConversationMemory, name string) {
	if mem == nil || name == "" || mem.UserName != "" {
		return
	}
	mem.UserName = name
	mem.UpdatedAt = s.now()
	slog.Debug("Memory user name set", "user_id", mem.UserID)
}

// AppendTurn stores one exchange, truncating both sides to the storage limit
// and dropping the oldest turn beyond the history cap.
func (s *Store) AppendTurn(mem *models.ConversationMemory, inbound, outbound string) {
	if mem == nil {
		return
	}
	mem.History = append(mem.History, models.Turn{
		Inbound:   truncate(inbound, models.MaxTurnTextLength),
		Outbound:  truncate(outbound, models.MaxTurnTextLength),
		Timestamp: s.now(),
	})
	if excess := len(mem.History) - s.maxHistoryTurns; excess > 0 {
		mem.History = mem.History[excess:]
	}
	mem.UpdatedAt = s.now()
}

// ResetRetries clears the retry counter for a state after progression.
func (s *Store) ResetRetries(mem *models.ConversationMemory, state models.ConversationState) {
	if mem == nil {
		return
	}
	if mem.RetriesPerState == nil {
		mem.RetriesPerState = make(map[models.ConversationState]int)
	}
	delete(mem.RetriesPerState, state)
}

// IncrRetries bumps the retry counter for a state and returns the new value.
func (s *Store) IncrRetries(mem *models.ConversationMemory, state models.ConversationState) int {
	if mem == nil {
		return 0
	}
	if mem.RetriesPerState == nil {
		mem.RetriesPerState = make(map[models.ConversationState]int)
	}
	mem.RetriesPerState[state]++
	return mem.RetriesPerState[state]
}

// Len returns the number of registered memory records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// EvictIdle drops records that have not been touched within maxIdle and
// returns how many were removed. This is the external cleanup policy; the
// conversation core itself never destroys records.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for userID, mem := range s.records {
		if mem.UpdatedAt.Before(cutoff) {
			delete(s.records, userID)
			delete(s.userLocks, userID)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("Memory store evicted idle records", "evicted", evicted, "remaining", len(s.records))
	}
	return evicted
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
