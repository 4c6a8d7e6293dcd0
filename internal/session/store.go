package session

import (
	"log/slog"
	"sync"
	"time"
)

// Store owns every live session, keyed by call ID. All map operations are
// atomic with respect to concurrent sweeps; per-session state is guarded
// separately by each session's own lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create inserts a new session for callID seeded with systemInstruction and
// returns it with created=true. If a session already exists for callID, the
// existing one is returned with created=false and nothing changes.
func (st *Store) Create(callID, systemInstruction string) (s *Session, created bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if existing, ok := st.sessions[callID]; ok {
		return existing, false
	}
	s = New(callID, systemInstruction)
	st.sessions[callID] = s
	return s, true
}

// Get returns the session for callID, or ok=false if absent.
func (st *Store) Get(callID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[callID]
	return s, ok
}

// Update runs mutator on the session for callID inside the session's
// serialized handler. Returns false if no such session exists. Must not be
// called from code already inside the session's Do.
func (st *Store) Update(callID string, mutator func(*Session)) bool {
	s, ok := st.Get(callID)
	if !ok {
		return false
	}
	s.Do(func() { mutator(s) })
	return true
}

// Delete cancels the session's timers and removes it from the store,
// returning the removed session. Returns ok=false if absent.
func (st *Store) Delete(callID string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[callID]
	if ok {
		delete(st.sessions, callID)
	}
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	// Cancel outside the map lock; timer callbacks fetch sessions through the
	// store and would deadlock otherwise.
	s.Do(func() { s.CancelTimers() })
	return s, true
}

// ListAll returns a snapshot of all live sessions.
func (st *Store) ListAll() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// SweepExpired deletes every session whose last activity is older than maxAge
// and returns how many were removed. Safe to call concurrently with
// per-session mutation.
func (st *Store) SweepExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	var stale []string
	for _, s := range st.ListAll() {
		s.Do(func() {
			if s.LastActivityAt.Before(cutoff) {
				stale = append(stale, s.CallID)
			}
		})
	}

	removed := 0
	for _, callID := range stale {
		if _, ok := st.Delete(callID); ok {
			slog.Warn("swept expired session", "call_id", callID, "max_age", maxAge)
			removed++
		}
	}
	return removed
}
