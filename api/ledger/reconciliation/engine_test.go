package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := dec(t, s)
	return &d
}

func testSession(t *testing.T) *Session {
	t.Helper()
	return &Session{
		AccountID:        "acct-1",
		CompanyID:        "co-1",
		BeginningBalance: dec(t, "1000.00"),
		BeginningDate:    time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		EndingDate:       time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Deposits: []Candidate{
			{ID: "dep-1", Type: TypeDeposit, Source: SourceLedger, Amount: dec(t, "500.00"), EntryID: "entry-1"},
			{ID: "dep-2", Type: TypeDeposit, Source: SourceLedger, Amount: dec(t, "75.25"), EntryID: "entry-2"},
		},
		Payments: []Candidate{
			{ID: "pay-1", Type: TypePayment, Source: SourcePayment, Amount: dec(t, "200.00")},
			{ID: "pay-2", Type: TypePayment, Source: SourceLedger, Amount: dec(t, "40.10"), EntryID: "entry-3"},
		},
	}
}

func TestClearedBalance(t *testing.T) {
	s := testSession(t)

	// Nothing cleared yet: cleared balance is the beginning balance.
	if got := s.ClearedBalance(); !got.Equal(dec(t, "1000.00")) {
		t.Errorf("ClearedBalance with nothing cleared = %s, want 1000.00", got)
	}

	s.SetCleared("dep-1", TypeDeposit, true)
	s.SetCleared("pay-1", TypePayment, true)

	// 1000 + 500 - 200
	if got := s.ClearedBalance(); !got.Equal(dec(t, "1300.00")) {
		t.Errorf("ClearedBalance = %s, want 1300.00", got)
	}
}

func TestTotalCashBalance(t *testing.T) {
	s := testSession(t)
	// 1000 + 500 + 75.25 - 200 - 40.10, regardless of cleared flags.
	want := dec(t, "1335.15")
	if got := s.TotalCashBalance(); !got.Equal(want) {
		t.Errorf("TotalCashBalance = %s, want %s", got, want)
	}
	s.SetCleared("dep-1", TypeDeposit, true)
	if got := s.TotalCashBalance(); !got.Equal(want) {
		t.Errorf("TotalCashBalance after clearing = %s, want %s", got, want)
	}
}

func TestAdjustedBalanceMatchesClearedBalance(t *testing.T) {
	s := testSession(t)
	flips := [][3]interface{}{
		{"dep-1", TypeDeposit, true},
		{"pay-2", TypePayment, true},
		{"dep-2", TypeDeposit, true},
		{"dep-1", TypeDeposit, false},
		{"pay-1", TypePayment, true},
	}
	for _, f := range flips {
		s.SetCleared(f[0].(string), f[1].(string), f[2].(bool))
		if !s.AdjustedBalance().Equal(s.ClearedBalance()) {
			t.Fatalf("after clearing %v: adjusted %s != cleared %s",
				f[0], s.AdjustedBalance(), s.ClearedBalance())
		}
		if !s.IsAdjustedBalanced() {
			t.Fatalf("after clearing %v: IsAdjustedBalanced() = false", f[0])
		}
	}
}

func TestIsClearedBalanced(t *testing.T) {
	s := testSession(t)
	s.SetCleared("dep-1", TypeDeposit, true)
	s.SetCleared("pay-1", TypePayment, true)
	// cleared balance is 1300.00

	tests := []struct {
		name   string
		ending *decimal.Decimal
		want   bool
	}{
		{"no ending balance", nil, false},
		{"exact match", decPtr(t, "1300.00"), true},
		{"within tolerance", decPtr(t, "1300.009"), true},
		{"exactly one cent off", decPtr(t, "1300.01"), false},
		{"over tolerance", decPtr(t, "1300.02"), false},
		{"under by a cent", decPtr(t, "1299.99"), false},
		{"way off", decPtr(t, "1400.00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.EndingBalance = tt.ending
			if got := s.IsClearedBalanced(); got != tt.want {
				t.Errorf("IsClearedBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetCleared(t *testing.T) {
	s := testSession(t)

	entryID, ok := s.SetCleared("dep-1", TypeDeposit, true)
	if !ok || entryID != "entry-1" {
		t.Errorf("SetCleared(dep-1) = (%q, %v), want (entry-1, true)", entryID, ok)
	}
	if !s.Deposits[0].Cleared {
		t.Error("dep-1 not flagged cleared")
	}

	// Payment records have no parent entry.
	entryID, ok = s.SetCleared("pay-1", TypePayment, true)
	if !ok || entryID != "" {
		t.Errorf("SetCleared(pay-1) = (%q, %v), want (\"\", true)", entryID, ok)
	}

	// Unknown id and unknown type both miss.
	if _, ok := s.SetCleared("nope", TypeDeposit, true); ok {
		t.Error("SetCleared with unknown id reported ok")
	}
	if _, ok := s.SetCleared("dep-1", "transfer", true); ok {
		t.Error("SetCleared with unknown type reported ok")
	}

	// Unclearing flips back.
	s.SetCleared("dep-1", TypeDeposit, false)
	if s.Deposits[0].Cleared {
		t.Error("dep-1 still cleared after unclearing")
	}
}

func TestClearedEntryIDs(t *testing.T) {
	s := testSession(t)
	if got := s.ClearedEntryIDs(); len(got) != 0 {
		t.Errorf("ClearedEntryIDs with nothing cleared = %v, want empty", got)
	}

	s.SetCleared("dep-1", TypeDeposit, true)
	s.SetCleared("dep-2", TypeDeposit, true)
	s.SetCleared("pay-1", TypePayment, true) // payment-sourced, no entry
	s.SetCleared("pay-2", TypePayment, true)

	got := s.ClearedEntryIDs()
	want := []string{"entry-1", "entry-2", "entry-3"}
	if len(got) != len(want) {
		t.Fatalf("ClearedEntryIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ClearedEntryIDs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClearedEntryIDsDeduplicates(t *testing.T) {
	s := testSession(t)
	// Two lines of the same journal entry, both cleared.
	s.Deposits = append(s.Deposits,
		Candidate{ID: "dep-3", Type: TypeDeposit, Source: SourceLedger, Amount: dec(t, "10.00"), EntryID: "entry-1"})
	s.SetCleared("dep-1", TypeDeposit, true)
	s.SetCleared("dep-3", TypeDeposit, true)

	got := s.ClearedEntryIDs()
	if len(got) != 1 || got[0] != "entry-1" {
		t.Errorf("ClearedEntryIDs = %v, want [entry-1]", got)
	}
}

func TestClearedItemsAndAllItems(t *testing.T) {
	s := testSession(t)
	s.SetCleared("dep-2", TypeDeposit, true)
	s.SetCleared("pay-1", TypePayment, true)

	cleared := s.ClearedItems()
	if len(cleared) != 2 {
		t.Fatalf("ClearedItems returned %d items, want 2", len(cleared))
	}
	// Deposits come before payments.
	if cleared[0].ID != "dep-2" || cleared[1].ID != "pay-1" {
		t.Errorf("ClearedItems order = [%s %s], want [dep-2 pay-1]", cleared[0].ID, cleared[1].ID)
	}

	all := s.AllItems()
	if len(all) != 4 {
		t.Errorf("AllItems returned %d items, want 4", len(all))
	}
}
