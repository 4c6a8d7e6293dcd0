package directory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/attendly/callline/internal/directory"
)

func TestCleanPhoneNumber(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"+1 (555) 010-9999", "+15550109999"},
		{"555-010-9999", "+5550109999"},
		{"+447911123456", "+447911123456"},
		{"", ""},
		{"ext. abc", ""},
	}
	for _, tc := range cases {
		if got := directory.CleanPhoneNumber(tc.in); got != tc.want {
			t.Errorf("CleanPhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsValidPhoneNumber(t *testing.T) {
	t.Parallel()
	valid := []string{"+15550109999", "15550109999", "+44 7911 123-456"}
	for _, n := range valid {
		if !directory.IsValidPhoneNumber(n) {
			t.Errorf("IsValidPhoneNumber(%q) = false, want true", n)
		}
	}
	invalid := []string{"", "+0123", "not a number", "+"}
	for _, n := range invalid {
		if directory.IsValidPhoneNumber(n) {
			t.Errorf("IsValidPhoneNumber(%q) = true, want false", n)
		}
	}
}

func TestMemStore_FindByPhoneNumber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := directory.NewMemStore()

	err := store.Upsert(ctx, &directory.Student{
		ID:          "stu-1",
		Name:        "Jordan Li",
		PhoneNumber: "+1 (555) 010-9999",
		ClassName:   "Algebra II",
		Schedule:    "Mon/Wed 16:00",
		Status:      "enrolled",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Lookup matches regardless of formatting.
	st, err := store.FindByPhoneNumber(ctx, "555 010 9999")
	if err != nil {
		t.Fatalf("FindByPhoneNumber: %v", err)
	}
	if st.ID != "stu-1" || st.ClassName != "Algebra II" {
		t.Errorf("unexpected record: %+v", st)
	}
}

func TestMemStore_FindByPhoneNumber_NotFound(t *testing.T) {
	t.Parallel()
	store := directory.NewMemStore()
	_, err := store.FindByPhoneNumber(context.Background(), "+15550100000")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_RecordOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := directory.NewMemStore()
	store.Upsert(ctx, &directory.Student{ID: "stu-1", Name: "Jordan Li", PhoneNumber: "+15550109999"})

	if err := store.RecordOutcome(ctx, "stu-1", "absent", "work conflict"); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if err := store.RecordOutcome(ctx, "stu-1", "confirmed", ""); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	st, _ := store.FindByPhoneNumber(ctx, "+15550109999")
	if st.Status != "confirmed" {
		t.Errorf("status = %q, want confirmed", st.Status)
	}

	outcomes, err := store.Outcomes(ctx, "stu-1")
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	// Newest first.
	if outcomes[0].Status != "confirmed" || outcomes[1].Reason != "work conflict" {
		t.Errorf("unexpected outcome order: %+v", outcomes)
	}
}

func TestMemStore_RecordOutcome_UnknownStudent(t *testing.T) {
	t.Parallel()
	store := directory.NewMemStore()
	err := store.RecordOutcome(context.Background(), "ghost", "absent", "")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_UpsertReplacesPhoneIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := directory.NewMemStore()
	store.Upsert(ctx, &directory.Student{ID: "stu-1", Name: "Jordan Li", PhoneNumber: "+15550109999"})
	store.Upsert(ctx, &directory.Student{ID: "stu-1", Name: "Jordan Li", PhoneNumber: "+15550108888"})

	if _, err := store.FindByPhoneNumber(ctx, "+15550109999"); !errors.Is(err, directory.ErrNotFound) {
		t.Error("old phone number should no longer resolve")
	}
	if _, err := store.FindByPhoneNumber(ctx, "+15550108888"); err != nil {
		t.Errorf("new phone number should resolve: %v", err)
	}
}

func TestStudent_Validate(t *testing.T) {
	t.Parallel()
	bad := &directory.Student{PhoneNumber: "++nope"}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	good := &directory.Student{ID: "stu-1", Name: "Jordan Li", PhoneNumber: "+15550109999"}
	if err := good.Validate(); err != nil {
		t.Errorf("valid student rejected: %v", err)
	}
}

func TestPhoneSuffix(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"+15551234567", "5551234567"},
		{"5551234567", "5551234567"},
		{"+44 7911 123456", "7911123456"},
		{"+0109999", "0109999"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := directory.PhoneSuffix(tc.in); got != tc.want {
			t.Errorf("PhoneSuffix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSamePhoneNumber(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b string
		want bool
	}{
		{"+15551234567", "+15551234567", true},
		{"+15551234567", "5551234567", true},
		{"+5551234567", "+15551234567", true},
		{"+44 7911 123456", "+447911123456", true},
		{"+15551234567", "+15559999999", false},
		{"", "+15551234567", false},
	}
	for _, tc := range cases {
		if got := directory.SamePhoneNumber(tc.a, tc.b); got != tc.want {
			t.Errorf("SamePhoneNumber(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMemStore_FindByPhoneNumber_CountryCodeVariant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := directory.NewMemStore()

	// Stored without a country code, dialed with one.
	err := store.Upsert(ctx, &directory.Student{
		ID:          "stu-1",
		Name:        "Jordan Li",
		PhoneNumber: "5551234567",
		ClassName:   "Algebra II",
		Schedule:    "Mon/Wed 16:00",
		Status:      "enrolled",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	st, err := store.FindByPhoneNumber(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("FindByPhoneNumber: %v", err)
	}
	if st.ID != "stu-1" {
		t.Errorf("matched record = %+v, want stu-1", st)
	}
}
