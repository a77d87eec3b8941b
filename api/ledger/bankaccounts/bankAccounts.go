package bankaccounts

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"ConstructaSaas/api"
	"ConstructaSaas/api/constants"
	"ConstructaSaas/api/utils"

	"github.com/lib/pq"
)

func pqUserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return err.Error()
	}
	switch pqErr.Code {
	case "23505":
		return "A record with the same unique value already exists."
	case "23503":
		return "Some referenced data was not found (please refresh and try again)."
	case "23514":
		return "Some fields have invalid values. Please check and try again."
	default:
		return "Database error while processing the request. Please try again."
	}
}

// ListBankAccounts returns the company's bank accounts the acting user may
// see, with their linked ledger account and current balance, paginated via
// ?page= and ?limit=.
func ListBankAccounts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID    string `json:"user_id"`
			CompanyID string `json:"company_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		companyID := api.CompanyIDFromCtx(ctx, req.CompanyID)

		approved := api.ApprovedAccountsFromCtx(ctx)
		ids := make([]string, 0, len(approved))
		for _, a := range approved {
			ids = append(ids, a.AccountID)
		}

		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithResult(w, false, err.Error())
			return
		}
		total, err := utils.CountTotal(db,
			`SELECT COUNT(*) FROM bank_accounts WHERE company_id = $1 AND account_id = ANY($2)`,
			companyID, pq.Array(ids))
		if err != nil {
			api.LogError("ListBankAccounts count failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" bank accounts")
			return
		}
		pagination.SetPaginationStats(total)

		rows, err := db.QueryContext(ctx, `
            SELECT b.account_id, b.account_name, b.account_number,
                   COALESCE(b.ledger_account_id, ''), COALESCE(a.name, ''),
                   b.current_balance::text, b.balance_as_of
            FROM bank_accounts b
            LEFT JOIN ledger_accounts a ON a.ledger_account_id = b.ledger_account_id
            WHERE b.company_id = $1 AND b.account_id = ANY($2)
            ORDER BY b.account_name
            LIMIT $3 OFFSET $4`,
			companyID, pq.Array(ids), pagination.Limit, pagination.Offset)
		if err != nil {
			api.LogError("ListBankAccounts query failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" bank accounts")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var id, name, number, ledgerID, ledgerName, balance string
			var asOf sql.NullTime
			if err := rows.Scan(&id, &name, &number, &ledgerID, &ledgerName, &balance, &asOf); err != nil {
				api.RespondWithResult(w, false, constants.ErrFailedToQuery+" bank accounts")
				return
			}
			row := map[string]interface{}{
				"account_id":        id,
				"account_name":      name,
				"account_number":    number,
				"ledger_account_id": ledgerID,
				"ledger_account":    ledgerName,
				"current_balance":   balance,
			}
			if asOf.Valid {
				row["balance_as_of"] = asOf.Time.Format(constants.DateFormat)
			}
			out = append(out, row)
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"accounts":   out,
			"pagination": pagination,
		})
	}
}

// GetBankAccount returns one account with the date it was last reconciled
// through, which seeds the reconciliation screen.
func GetBankAccount(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID    string `json:"user_id"`
			CompanyID string `json:"company_id,omitempty"`
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
		companyID := api.CompanyIDFromCtx(ctx, req.CompanyID)

		var name, number, ledgerID, balance string
		var asOf sql.NullTime
		var lastReconciled sql.NullTime
		err := db.QueryRowContext(ctx, `
            SELECT b.account_name, b.account_number, COALESCE(b.ledger_account_id, ''),
                   b.current_balance::text, b.balance_as_of,
                   (SELECT MAX(ending_date) FROM reconciliations
                    WHERE bank_account_id = b.account_id AND status = 'completed')
            FROM bank_accounts b
            WHERE b.account_id = $1 AND b.company_id = $2`,
			req.AccountID, companyID).Scan(&name, &number, &ledgerID, &balance, &asOf, &lastReconciled)
		if err == sql.ErrNoRows {
			api.RespondWithResult(w, false, constants.ErrAccountNotFound)
			return
		}
		if err != nil {
			api.LogError("GetBankAccount failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" bank account")
			return
		}

		row := map[string]interface{}{
			"account_id":        req.AccountID,
			"account_name":      name,
			"account_number":    number,
			"ledger_account_id": ledgerID,
			"current_balance":   balance,
		}
		if asOf.Valid {
			row["balance_as_of"] = asOf.Time.Format(constants.DateFormat)
		}
		if lastReconciled.Valid {
			row["last_reconciled_through"] = lastReconciled.Time.Format(constants.DateFormat)
		}
		api.RespondWithPayload(w, true, "", row)
	}
}

// LinkLedgerAccount points a bank account at its general-ledger account.
// Reconciliation candidates are sourced through this link.
func LinkLedgerAccount(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID          string `json:"user_id"`
			CompanyID       string `json:"company_id,omitempty"`
			AccountID       string `json:"account_id"`
			LedgerAccountID string `json:"ledger_account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" || req.LedgerAccountID == "" {
			api.RespondWithResult(w, false, "account_id and ledger_account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}
		companyID := api.CompanyIDFromCtx(ctx, req.CompanyID)

		res, err := db.ExecContext(ctx, `
            UPDATE bank_accounts SET ledger_account_id = $3
            WHERE account_id = $1 AND company_id = $2`,
			req.AccountID, companyID, req.LedgerAccountID)
		if err != nil {
			api.LogError("LinkLedgerAccount failed: %v", err)
			api.RespondWithResult(w, false, pqUserFriendlyMessage(err))
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			api.RespondWithResult(w, false, constants.ErrAccountNotFound)
			return
		}
		actor := api.RequestedByFromCtx(ctx, req.UserID)
		api.LogInfo("bank account %s linked to ledger account %s by %s", req.AccountID, req.LedgerAccountID, actor)
		api.RespondWithResult(w, true, "")
	}
}
