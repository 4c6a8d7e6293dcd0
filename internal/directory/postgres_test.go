package directory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockDB implements DB, recording queries and delegating to stubbed funcs.
type mockDB struct {
	queryRowFunc func(sql string, args []any) pgx.Row
	execFunc     func(sql string, args []any) (pgconn.CommandTag, error)
	execCalls    []string
}

func (db *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return db.queryRowFunc(sql, args)
}

func (db *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execCalls = append(db.execCalls, sql)
	if db.execFunc != nil {
		return db.execFunc(sql, args)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresStore_FindByPhoneNumber_NormalizesLookup(t *testing.T) {
	t.Parallel()

	var gotSQL string
	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(sql string, args []any) pgx.Row {
			gotSQL = sql
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*string) = "stu-1"
				*dest[1].(*string) = "Jordan Li"
				*dest[2].(*string) = "+15550109999"
				*dest[3].(*string) = "Algebra II"
				*dest[4].(*string) = "Mon/Wed 16:00"
				*dest[5].(*string) = "enrolled"
				*dest[6].(*time.Time) = time.Now()
				*dest[7].(*time.Time) = time.Now()
				return nil
			}}
		},
	}

	store := NewPostgresStore(db)
	st, err := store.FindByPhoneNumber(context.Background(), "(555) 010-9999")
	if err != nil {
		t.Fatalf("FindByPhoneNumber: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "+5550109999" {
		t.Errorf("query args = %v, want normalized +5550109999 first", gotArgs)
	}
	// The second parameter carries the 10-digit suffix so records stored
	// with a different country-code form still match.
	if gotArgs[1] != "5550109999" {
		t.Errorf("suffix arg = %v, want 5550109999", gotArgs[1])
	}
	if !strings.Contains(gotSQL, "right(ltrim(phone_number, '+'), 10)") {
		t.Errorf("query lacks suffix clause: %s", gotSQL)
	}
	if st.ID != "stu-1" {
		t.Errorf("student ID = %q, want stu-1", st.ID)
	}
}

func TestPostgresStore_FindByPhoneNumber_NoRows(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		queryRowFunc: func(string, []any) pgx.Row {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		},
	}
	store := NewPostgresStore(db)
	_, err := store.FindByPhoneNumber(context.Background(), "+15550100000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_RecordOutcome_InsertsAndUpdates(t *testing.T) {
	t.Parallel()
	db := &mockDB{}
	store := NewPostgresStore(db)
	if err := store.RecordOutcome(context.Background(), "stu-1", "absent", "sick"); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if len(db.execCalls) != 2 {
		t.Fatalf("got %d exec calls, want 2 (insert + status update)", len(db.execCalls))
	}
}

func TestPostgresStore_RecordOutcome_ForeignKeyAsNotFound(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		execFunc: func(string, []any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23503"}
		},
	}
	store := NewPostgresStore(db)
	err := store.RecordOutcome(context.Background(), "ghost", "absent", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
