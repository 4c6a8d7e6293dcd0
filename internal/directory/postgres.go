package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the directory tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    phone_number TEXT NOT NULL DEFAULT '',
    class_name   TEXT NOT NULL DEFAULT '',
    schedule     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'unknown',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_students_phone ON students(phone_number);

CREATE TABLE IF NOT EXISTS call_outcomes (
    id           BIGSERIAL PRIMARY KEY,
    student_id   TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    status       TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_outcomes_student ON call_outcomes(student_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// directory tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	return nil
}

// FindByPhoneNumber looks up a student by normalized phone number. An exact
// match wins; otherwise a record sharing the dialed number's 10-digit suffix
// matches. Returns [ErrNotFound] if no record matches.
func (s *PostgresStore) FindByPhoneNumber(ctx context.Context, number string) (*Student, error) {
	cleaned := CleanPhoneNumber(number)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty phone number", ErrNotFound)
	}

	// Stored numbers are normalized at upsert, so the suffix comparison only
	// has to strip the leading '+'.
	const query = `
		SELECT id, name, phone_number, class_name, schedule, status, created_at, updated_at
		FROM students
		WHERE phone_number = $1
		   OR right(ltrim(phone_number, '+'), 10) = $2
		ORDER BY (phone_number = $1) DESC
		LIMIT 1`

	var st Student
	err := s.db.QueryRow(ctx, query, cleaned, PhoneSuffix(cleaned)).Scan(
		&st.ID, &st.Name, &st.PhoneNumber, &st.ClassName, &st.Schedule, &st.Status,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: phone %s", ErrNotFound, cleaned)
		}
		return nil, fmt.Errorf("directory: find by phone %s: %w", cleaned, err)
	}
	return &st, nil
}

// RecordOutcome inserts an outcome row and updates the student's status.
func (s *PostgresStore) RecordOutcome(ctx context.Context, studentID, status, reason string) error {
	const insert = `
		INSERT INTO call_outcomes (student_id, status, reason)
		VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, insert, studentID, status, reason); err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: id %s", ErrNotFound, studentID)
		}
		return fmt.Errorf("directory: record outcome for %s: %w", studentID, err)
	}

	const update = `
		UPDATE students SET status = $2, updated_at = now()
		WHERE id = $1`
	if _, err := s.db.Exec(ctx, update, studentID, status); err != nil {
		return fmt.Errorf("directory: update status for %s: %w", studentID, err)
	}
	return nil
}

// Upsert creates or replaces a student record. The phone number is normalized
// before persistence so lookups by cleaned number always match.
func (s *PostgresStore) Upsert(ctx context.Context, st *Student) error {
	if err := st.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO students (id, name, phone_number, class_name, schedule, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			class_name = EXCLUDED.class_name,
			schedule = EXCLUDED.schedule,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		st.ID, st.Name, CleanPhoneNumber(st.PhoneNumber), st.ClassName, st.Schedule, defaultStatus(st.Status),
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("directory: upsert %s: %w", st.ID, err)
	}
	return nil
}

// Outcomes returns the recorded outcomes for a student, newest first.
func (s *PostgresStore) Outcomes(ctx context.Context, studentID string) ([]Outcome, error) {
	const query = `
		SELECT student_id, status, reason, recorded_at
		FROM call_outcomes
		WHERE student_id = $1
		ORDER BY recorded_at DESC`

	rows, err := s.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("directory: outcomes for %s: %w", studentID, err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.StudentID, &o.Status, &o.Reason, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("directory: outcomes scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: outcomes for %s: %w", studentID, err)
	}
	return out, nil
}

// defaultStatus returns the status value, defaulting to "unknown" if empty.
func defaultStatus(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// isForeignKeyError checks whether a PostgreSQL error is a foreign-key
// violation (SQLSTATE 23503).
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
