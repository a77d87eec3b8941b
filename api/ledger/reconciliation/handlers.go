package reconciliation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ConstructaSaas/api"
	"ConstructaSaas/api/constants"
	"ConstructaSaas/api/ledger/journal"
	"ConstructaSaas/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type itemReq struct {
	TransactionID   string `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	Source          string `json:"source"`
	EntryID         string `json:"entry_id,omitempty"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Cleared         bool   `json:"cleared"`
}

type sessionReq struct {
	UserID           string    `json:"user_id"`
	CompanyID        string    `json:"company_id,omitempty"`
	AccountID        string    `json:"account_id"`
	BeginningBalance string    `json:"beginning_balance"`
	BeginningDate    string    `json:"beginning_date"`
	EndingBalance    *string   `json:"ending_balance,omitempty"`
	EndingDate       string    `json:"ending_date"`
	StatementID      string    `json:"statement_id,omitempty"`
	Items            []itemReq `json:"items"`
}

func buildSession(req *sessionReq, companyID string) (*Session, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id required")
	}
	beginning, err := decimal.NewFromString(req.BeginningBalance)
	if err != nil {
		return nil, fmt.Errorf("bad beginning_balance %q", req.BeginningBalance)
	}
	beginningDate, err := time.Parse(constants.DateFormat, req.BeginningDate)
	if err != nil {
		return nil, fmt.Errorf("bad beginning_date %q", req.BeginningDate)
	}
	endingDate, err := time.Parse(constants.DateFormat, req.EndingDate)
	if err != nil {
		return nil, fmt.Errorf("bad ending_date %q", req.EndingDate)
	}

	s := &Session{
		AccountID:        req.AccountID,
		CompanyID:        companyID,
		BeginningBalance: beginning,
		BeginningDate:    beginningDate,
		EndingDate:       endingDate,
	}
	if req.EndingBalance != nil {
		ending, err := decimal.NewFromString(*req.EndingBalance)
		if err != nil {
			return nil, fmt.Errorf("bad ending_balance %q", *req.EndingBalance)
		}
		s.EndingBalance = &ending
	}

	for _, it := range req.Items {
		amount, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q on item %s", it.Amount, it.TransactionID)
		}
		var date time.Time
		if it.Date != "" {
			if date, err = time.Parse(constants.DateFormat, it.Date); err != nil {
				return nil, fmt.Errorf("bad date %q on item %s", it.Date, it.TransactionID)
			}
		}
		c := Candidate{
			ID:      it.TransactionID,
			Type:    it.TransactionType,
			Source:  it.Source,
			EntryID: it.EntryID,
			Amount:  amount,
			Date:    date,
			Cleared: it.Cleared,
		}
		switch it.TransactionType {
		case TypeDeposit:
			s.Deposits = append(s.Deposits, c)
		case TypePayment:
			s.Payments = append(s.Payments, c)
		default:
			return nil, fmt.Errorf("bad transaction_type %q on item %s", it.TransactionType, it.TransactionID)
		}
	}
	return s, nil
}

// mergeSaved restores a saved in_progress session into a freshly loaded one:
// the saved ending balance and date win, and saved cleared flags are
// reapplied to whichever candidates are still offered. Returns the saved
// reconciliation id, empty when there is nothing to merge.
func mergeSaved(s *Session, saved *InProgress) string {
	if saved == nil {
		return ""
	}
	if saved.EndingBalance != nil {
		if ending, err := decimal.NewFromString(*saved.EndingBalance); err == nil {
			s.EndingBalance = &ending
		}
	}
	if saved.EndingDate != nil {
		s.EndingDate = *saved.EndingDate
	}
	for _, set := range [][]Candidate{s.Deposits, s.Payments} {
		for i := range set {
			if saved.ClearedIDs[set[i].ID] {
				set[i].Cleared = true
			}
		}
	}
	return saved.ReconciliationID
}

func balancesPayload(s *Session) map[string]interface{} {
	out := map[string]interface{}{
		"cleared_balance":      s.ClearedBalance().StringFixed(2),
		"total_cash_balance":   s.TotalCashBalance().StringFixed(2),
		"adjusted_balance":     s.AdjustedBalance().StringFixed(2),
		"is_cleared_balanced":  s.IsClearedBalanced(),
		"is_adjusted_balanced": s.IsAdjustedBalanced(),
	}
	if s.EndingBalance != nil {
		out["ending_balance"] = s.EndingBalance.StringFixed(2)
	}
	return out
}

// StartSession seeds a reconciliation session for an account: beginning
// balance and date come from the most recent completed reconciliation's
// ending values, or from the account row when the account has never been
// reconciled. Both candidate sets are loaded up to the ending date, and a
// previously saved in_progress session (ending values + cleared flags) is
// merged back in. Nothing is written.
func StartSession(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID     string `json:"user_id"`
			CompanyID  string `json:"company_id,omitempty"`
			AccountID  string `json:"account_id"`
			EndingDate string `json:"ending_date,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		companyID := api.CompanyIDFromCtx(ctx, req.CompanyID)

		var accountName, ledgerAccountID, currentBalance string
		var balanceAsOf *time.Time
		err := pool.QueryRow(ctx, `
            SELECT account_name, COALESCE(ledger_account_id, ''), current_balance::text, balance_as_of
            FROM bank_accounts
            WHERE account_id = $1 AND company_id = $2`,
			req.AccountID, companyID).Scan(&accountName, &ledgerAccountID, &currentBalance, &balanceAsOf)
		if err != nil {
			api.LogError("StartSession: account %s not found: %v", req.AccountID, err)
			api.RespondWithResult(w, false, constants.ErrAccountNotFound)
			return
		}

		endingDate := time.Now().Truncate(24 * time.Hour)
		if req.EndingDate != "" {
			if endingDate, err = time.Parse(constants.DateFormat, req.EndingDate); err != nil {
				api.RespondWithResult(w, false, "bad ending_date: use "+constants.DateFormat)
				return
			}
		}

		// Seed beginning balance from the last completed reconciliation,
		// falling back to the account's stored balance.
		beginningStr, beginningDate, seeded, err := LatestCompleted(ctx, pool, req.AccountID)
		if err != nil {
			api.LogError("StartSession: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" reconciliations")
			return
		}
		if !seeded {
			beginningStr = currentBalance
			if balanceAsOf != nil {
				beginningDate = *balanceAsOf
			}
		}
		beginning, err := decimal.NewFromString(beginningStr)
		if err != nil {
			api.LogError("StartSession: bad stored balance %q: %v", beginningStr, err)
			api.RespondWithResult(w, false, "stored balance is not numeric")
			return
		}

		deposits, payments, err := LoadCandidates(ctx, pool, req.AccountID, companyID, ledgerAccountID, endingDate)
		if err != nil {
			api.LogError("StartSession: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" candidates")
			return
		}

		s := &Session{
			AccountID:        req.AccountID,
			CompanyID:        companyID,
			BeginningBalance: beginning,
			BeginningDate:    beginningDate,
			EndingDate:       endingDate,
			Deposits:         deposits,
			Payments:         payments,
		}

		saved, err := FindInProgress(ctx, pool, req.AccountID)
		if err != nil {
			api.LogError("StartSession: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" saved progress")
			return
		}
		reconciliationID := mergeSaved(s, saved)

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"reconciliation_id": reconciliationID,
			"account_id":        s.AccountID,
			"account_name":      accountName,
			"beginning_balance": s.BeginningBalance.StringFixed(2),
			"beginning_date":    s.BeginningDate.Format(constants.DateFormat),
			"ending_date":       s.EndingDate.Format(constants.DateFormat),
			"deposits":          s.Deposits,
			"payments":          s.Payments,
			"balances":          balancesPayload(s),
		})
	}
}

// ToggleCleared runs the reconciled-flag cascade for one candidate. The
// cleared flag itself lives in the caller's working set until the next save;
// the cascade is the only persistent side effect, and a cascade failure is
// reported as a warning rather than an error so the toggle survives it.
func ToggleCleared(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID          string `json:"user_id"`
			AccountID       string `json:"account_id"`
			TransactionID   string `json:"transaction_id"`
			TransactionType string `json:"transaction_type"`
			Source          string `json:"source"`
			EntryID         string `json:"entry_id,omitempty"`
			Cleared         bool   `json:"cleared"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if req.TransactionID == "" {
			api.RespondWithResult(w, false, "transaction_id required")
			return
		}
		if req.TransactionType != TypeDeposit && req.TransactionType != TypePayment {
			api.RespondWithResult(w, false, "transaction_type must be deposit or payment")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}

		if req.Source != SourceLedger {
			// Payment records carry no ledger entry, nothing to cascade.
			api.RespondWithPayload(w, true, "", map[string]interface{}{"lines_updated": 0})
			return
		}

		actor := api.RequestedByFromCtx(ctx, req.UserID)
		companyID := api.CompanyIDFromCtx(ctx, "")
		entryID := req.EntryID
		if entryID == "" {
			var err error
			entryID, err = journal.EntryIDForLine(ctx, pool, req.TransactionID, companyID)
			if err != nil {
				api.LogError("ToggleCleared: %v", err)
				api.RespondWithPayload(w, true, "", map[string]interface{}{
					"warning": "cleared flag noted, but the ledger entry could not be resolved",
				})
				return
			}
		} else {
			ok, err := journal.EntryInCompany(ctx, pool, entryID, companyID)
			if err != nil || !ok {
				api.LogError("ToggleCleared: entry %s not in company %s (%v)", entryID, companyID, err)
				api.RespondWithPayload(w, true, "", map[string]interface{}{
					"warning": "cleared flag noted, but the ledger entry could not be resolved",
				})
				return
			}
		}

		lines, err := journal.SetEntriesReconciled(ctx, pool, []string{entryID}, req.Cleared, actor)
		if err != nil {
			// Best-effort side effect: warn, do not fail the toggle.
			api.LogError("ToggleCleared cascade failed for entry %s: %v", entryID, err)
			api.RespondWithPayload(w, true, "", map[string]interface{}{
				"warning": "cleared flag noted, but updating the ledger entry failed",
			})
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"entry_id":      entryID,
			"lines_updated": lines,
		})
	}
}

// SaveProgressHandler persists the working set without finalizing.
func SaveProgressHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req sessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}
		s, err := buildSession(&req, api.CompanyIDFromCtx(ctx, req.CompanyID))
		if err != nil {
			api.RespondWithResult(w, false, err.Error())
			return
		}
		actor := api.RequestedByFromCtx(ctx, req.UserID)

		reconciliationID, err := SaveProgress(ctx, pool, s, actor)
		if err != nil {
			api.LogError("SaveProgress for account %s failed: %v", s.AccountID, err)
			api.RespondWithResult(w, false, "Failed to save reconciliation progress")
			return
		}
		api.LogInfo("saved reconciliation progress %s for account %s (%d items)",
			reconciliationID, s.AccountID, len(s.AllItems()))
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"reconciliation_id": reconciliationID,
			"status":            StatusInProgress,
			"balances":          balancesPayload(s),
		})
	}
}

// FinalizeHandler completes the reconciliation. Refused outright when no
// ending balance was entered or the cleared balance does not match it within
// one cent; no partial finalize exists.
func FinalizeHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req sessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}
		s, err := buildSession(&req, api.CompanyIDFromCtx(ctx, req.CompanyID))
		if err != nil {
			api.RespondWithResult(w, false, err.Error())
			return
		}
		if s.EndingBalance == nil {
			api.RespondWithResult(w, false, constants.ErrEndingBalanceRequired)
			return
		}
		if !s.IsClearedBalanced() {
			api.RespondWithResult(w, false, fmt.Sprintf(constants.ErrBalanceMismatch,
				s.ClearedBalance().StringFixed(2), s.EndingBalance.StringFixed(2)))
			return
		}

		actor := api.RequestedByFromCtx(ctx, req.UserID)
		reconciliationID, err := Finalize(ctx, pool, s, req.StatementID, actor)
		if err != nil {
			api.LogError("Finalize for account %s failed: %v", s.AccountID, err)
			api.RespondWithResult(w, false, "Failed to complete reconciliation")
			return
		}

		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"reconciliation %s completed for account %s through %s by %s (ending balance %s)",
				reconciliationID, s.AccountID, s.EndingDate.Format(constants.DateFormat),
				actor, s.EndingBalance.StringFixed(2)))
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"reconciliation_id": reconciliationID,
			"status":            StatusCompleted,
			"balances":          balancesPayload(s),
		})
	}
}

// HistoryHandler lists completed reconciliations for an account.
func HistoryHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID    string `json:"user_id"`
			AccountID string `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}
		rows, err := History(ctx, pool, req.AccountID)
		if err != nil {
			api.LogError("History: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" reconciliation history")
			return
		}
		api.RespondWithPayload(w, true, "", rows)
	}
}
