package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ConstructaSaas/api"
	"ConstructaSaas/api/constants"
)

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func postJSON(t *testing.T, h http.HandlerFunc, body string, ctxVals map[interface{}]interface{}) envelope {
	t.Helper()
	r := httptest.NewRequest("POST", "/ledger/reconciliation", strings.NewReader(body))
	ctx := r.Context()
	for k, v := range ctxVals {
		ctx = context.WithValue(ctx, k, v)
	}
	w := httptest.NewRecorder()
	h(w, r.WithContext(ctx))

	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return resp
}

// One deposit of 500 cleared against a 1000 beginning balance: cleared
// balance 1500.00.
func finalizeBody(endingBalance string) string {
	body := `{
        "user_id": "u-1",
        "account_id": "acct-1",
        "beginning_balance": "1000.00",
        "beginning_date": "2026-07-01",
        "ending_date": "2026-07-31",`
	if endingBalance != "" {
		body += fmt.Sprintf("\n        \"ending_balance\": %q,", endingBalance)
	}
	body += `
        "items": [
            {"transaction_id": "dep-1", "transaction_type": "deposit", "source": "ledger",
             "entry_id": "entry-1", "amount": "500.00", "date": "2026-07-10", "cleared": true}
        ]
    }`
	return body
}

func TestFinalizeRefusedWithoutEndingBalance(t *testing.T) {
	resp := postJSON(t, FinalizeHandler(nil), finalizeBody(""), nil)
	if resp.Success {
		t.Fatal("finalize without ending balance succeeded")
	}
	if resp.Error != constants.ErrEndingBalanceRequired {
		t.Errorf("error = %q, want %q", resp.Error, constants.ErrEndingBalanceRequired)
	}
}

func TestFinalizeRefusedOnBalanceMismatch(t *testing.T) {
	resp := postJSON(t, FinalizeHandler(nil), finalizeBody("9999.00"), nil)
	if resp.Success {
		t.Fatal("unbalanced finalize succeeded")
	}
	want := fmt.Sprintf(constants.ErrBalanceMismatch, "1500.00", "9999.00")
	if resp.Error != want {
		t.Errorf("error = %q, want %q", resp.Error, want)
	}
}

func TestFinalizeOneCentOffIsRefused(t *testing.T) {
	resp := postJSON(t, FinalizeHandler(nil), finalizeBody("1500.01"), nil)
	if resp.Success {
		t.Fatal("finalize one cent off succeeded")
	}
	if !strings.Contains(resp.Error, "does not match") {
		t.Errorf("error = %q, want a balance mismatch", resp.Error)
	}
}

func TestHandlersRejectUnapprovedAccount(t *testing.T) {
	// The session only covers acct-1; every body below names acct-2.
	approved := map[interface{}]interface{}{
		api.ApprovedAccountsKey: []api.ApprovedAccount{{AccountID: "acct-1", AccountName: "Operating"}},
	}
	sessionBody := `{
        "user_id": "u-1", "account_id": "acct-2",
        "beginning_balance": "1000.00", "beginning_date": "2026-07-01",
        "ending_date": "2026-07-31", "items": []
    }`

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
	}{
		{"save", SaveProgressHandler(nil), sessionBody},
		{"reconcile", FinalizeHandler(nil), sessionBody},
		{"history", HistoryHandler(nil), `{"user_id": "u-1", "account_id": "acct-2"}`},
		{"toggle", ToggleCleared(nil), `{
            "user_id": "u-1", "account_id": "acct-2",
            "transaction_id": "dep-1", "transaction_type": "deposit",
            "source": "ledger", "cleared": true
        }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, tt.handler, tt.body, approved)
			if resp.Success {
				t.Fatal("request against another company's account succeeded")
			}
			if resp.Error != constants.ErrAccountNotApproved {
				t.Errorf("error = %q, want %q", resp.Error, constants.ErrAccountNotApproved)
			}
		})
	}
}

func TestMergeSaved(t *testing.T) {
	endingBalance := "1300.00"
	endingDate := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	saved := &InProgress{
		ReconciliationID: "rec-1",
		EndingBalance:    &endingBalance,
		EndingDate:       &endingDate,
		ClearedIDs:       map[string]bool{"dep-1": true, "gone-1": true},
	}

	s := testSession(t)
	if got := mergeSaved(s, saved); got != "rec-1" {
		t.Errorf("mergeSaved returned %q, want rec-1", got)
	}
	if s.EndingBalance == nil || !s.EndingBalance.Equal(dec(t, "1300.00")) {
		t.Errorf("ending balance not restored: %v", s.EndingBalance)
	}
	if !s.EndingDate.Equal(endingDate) {
		t.Errorf("ending date = %s, want %s", s.EndingDate, endingDate)
	}
	if !s.Deposits[0].Cleared {
		t.Error("saved cleared flag for dep-1 not restored")
	}
	// Candidates saved earlier but no longer offered are simply skipped;
	// everything else stays uncleared.
	if s.Deposits[1].Cleared || s.Payments[0].Cleared || s.Payments[1].Cleared {
		t.Error("candidates outside the saved cleared set were flipped")
	}
}

func TestMergeSavedNothingSaved(t *testing.T) {
	s := testSession(t)
	if got := mergeSaved(s, nil); got != "" {
		t.Errorf("mergeSaved(nil) returned %q, want empty", got)
	}
	if s.EndingBalance != nil {
		t.Error("ending balance set with nothing saved")
	}
	for _, c := range s.AllItems() {
		if c.Cleared {
			t.Errorf("candidate %s cleared with nothing saved", c.ID)
		}
	}
}

func TestMergeSavedKeepsEndingValuesWhenSavedOnesAbsent(t *testing.T) {
	s := testSession(t)
	originalDate := s.EndingDate
	saved := &InProgress{ReconciliationID: "rec-2", ClearedIDs: map[string]bool{}}
	if got := mergeSaved(s, saved); got != "rec-2" {
		t.Errorf("mergeSaved returned %q, want rec-2", got)
	}
	if s.EndingBalance != nil {
		t.Error("ending balance invented from an empty save")
	}
	if !s.EndingDate.Equal(originalDate) {
		t.Errorf("ending date changed to %s, want %s", s.EndingDate, originalDate)
	}
}
