// Package directory is the callee directory: student records looked up by
// phone number at call setup, and attendance outcomes written back as calls
// conclude. Implementations must be safe for concurrent use.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups that match no student.
var ErrNotFound = errors.New("directory: student not found")

// Student is one directory record.
type Student struct {
	ID          string
	Name        string
	PhoneNumber string
	ClassName   string
	Schedule    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks that the record is storable.
func (s *Student) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("directory: student ID is required"))
	}
	if s.Name == "" {
		errs = append(errs, errors.New("directory: student name is required"))
	}
	if s.PhoneNumber != "" && !IsValidPhoneNumber(s.PhoneNumber) {
		errs = append(errs, fmt.Errorf("directory: invalid phone number %q", s.PhoneNumber))
	}
	return errors.Join(errs...)
}

// Outcome is one recorded attendance decision for a student.
type Outcome struct {
	StudentID  string
	Status     string
	Reason     string
	RecordedAt time.Time
}

// Store provides lookup and outcome recording for the callee directory.
type Store interface {
	// FindByPhoneNumber returns the student whose phone number matches number
	// after normalization. Returns [ErrNotFound] if no record matches.
	FindByPhoneNumber(ctx context.Context, number string) (*Student, error)

	// RecordOutcome persists an attendance decision for the student and
	// updates the student's current status.
	RecordOutcome(ctx context.Context, studentID, status, reason string) error

	// Upsert creates or replaces a student record, keyed by ID.
	Upsert(ctx context.Context, s *Student) error

	// Outcomes returns the recorded outcomes for a student, newest first.
	Outcomes(ctx context.Context, studentID string) ([]Outcome, error)
}
