package directory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory [Store], used when no database is configured and
// in tests. Records do not survive restarts.
type MemStore struct {
	mu       sync.RWMutex
	students map[string]*Student  // by ID
	byPhone  map[string]string    // cleaned phone → ID
	outcomes map[string][]Outcome // by student ID
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory directory store.
func NewMemStore() *MemStore {
	return &MemStore{
		students: make(map[string]*Student),
		byPhone:  make(map[string]string),
		outcomes: make(map[string][]Outcome),
	}
}

// FindByPhoneNumber looks up a student by normalized phone number. An exact
// match wins; otherwise the first record sharing the dialed number's 10-digit
// suffix is returned.
func (m *MemStore) FindByPhoneNumber(_ context.Context, number string) (*Student, error) {
	cleaned := CleanPhoneNumber(number)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty phone number", ErrNotFound)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPhone[cleaned]
	if !ok {
		for sid, st := range m.students {
			if SamePhoneNumber(st.PhoneNumber, cleaned) {
				id, ok = sid, true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: phone %s", ErrNotFound, cleaned)
	}
	cp := *m.students[id]
	return &cp, nil
}

// RecordOutcome appends an outcome and updates the student's status.
func (m *MemStore) RecordOutcome(_ context.Context, studentID, status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[studentID]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, studentID)
	}
	m.outcomes[studentID] = append(m.outcomes[studentID], Outcome{
		StudentID:  studentID,
		Status:     status,
		Reason:     reason,
		RecordedAt: time.Now(),
	})
	st.Status = status
	st.UpdatedAt = time.Now()
	return nil
}

// Upsert creates or replaces a student record.
func (m *MemStore) Upsert(_ context.Context, s *Student) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	cp.PhoneNumber = CleanPhoneNumber(s.PhoneNumber)
	if cp.Status == "" {
		cp.Status = "unknown"
	}
	now := time.Now()
	if old, ok := m.students[cp.ID]; ok {
		cp.CreatedAt = old.CreatedAt
		delete(m.byPhone, old.PhoneNumber)
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	m.students[cp.ID] = &cp
	if cp.PhoneNumber != "" {
		m.byPhone[cp.PhoneNumber] = cp.ID
	}

	s.CreatedAt = cp.CreatedAt
	s.UpdatedAt = cp.UpdatedAt
	return nil
}

// Outcomes returns the recorded outcomes for a student, newest first.
func (m *MemStore) Outcomes(_ context.Context, studentID string) ([]Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.outcomes[studentID]
	out := make([]Outcome, len(recs))
	for i, o := range recs {
		out[len(recs)-1-i] = o
	}
	return out, nil
}
