package journal

import (
	"encoding/json"
	"net/http"
	"time"

	"ConstructaSaas/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListLedgerAccounts returns the company's chart of accounts, for the
// bank-account linking screen.
func ListLedgerAccounts(pool *pgxpool.Pool) http.HandlerFunc {
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

		rows, err := pool.Query(ctx, `
            SELECT ledger_account_id, code, name, type
            FROM ledger_accounts
            WHERE company_id = $1
            ORDER BY code`, companyID)
		if err != nil {
			api.LogError("ListLedgerAccounts query failed: %v", err)
			api.RespondWithResult(w, false, "Failed to query ledger accounts")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var id, code, name, acctType string
			if err := rows.Scan(&id, &code, &name, &acctType); err != nil {
				api.RespondWithResult(w, false, "Failed to read ledger accounts")
				return
			}
			out = append(out, map[string]interface{}{
				"ledger_account_id": id,
				"code":              code,
				"name":              name,
				"type":              acctType,
			})
		}
		if err := rows.Err(); err != nil {
			api.RespondWithResult(w, false, "Failed to read ledger accounts")
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// ListEntryLines returns every line of one ledger entry with its reconciled
// state, for the entry drill-down view.
func ListEntryLines(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID  string `json:"user_id"`
			EntryID string `json:"entry_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.EntryID == "" {
			api.RespondWithResult(w, false, "entry_id required")
			return
		}

		rows, err := pool.Query(ctx, `
            SELECT l.line_id, l.ledger_account_id, a.name,
                   l.debit::text, l.credit::text,
                   COALESCE(l.description, ''), COALESCE(l.reference, ''),
                   l.is_reconciled, l.reconciled_at, l.reconciled_by
            FROM ledger_entry_lines l
            JOIN ledger_accounts a ON a.ledger_account_id = l.ledger_account_id
            WHERE l.entry_id = $1
            ORDER BY l.line_id`, req.EntryID)
		if err != nil {
			api.LogError("ListEntryLines query failed: %v", err)
			api.RespondWithResult(w, false, "Failed to query ledger entry lines")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var lineID, acctID, acctName, debit, credit, desc, ref string
			var isRec bool
			var recAt *time.Time
			var recBy *string
			if err := rows.Scan(&lineID, &acctID, &acctName, &debit, &credit, &desc, &ref, &isRec, &recAt, &recBy); err != nil {
				api.LogError("ListEntryLines scan failed: %v", err)
				api.RespondWithResult(w, false, "Failed to read ledger entry lines")
				return
			}
			out = append(out, map[string]interface{}{
				"line_id":           lineID,
				"ledger_account_id": acctID,
				"ledger_account":    acctName,
				"debit":             debit,
				"credit":            credit,
				"description":       desc,
				"reference":         ref,
				"is_reconciled":     isRec,
				"reconciled_at":     recAt,
				"reconciled_by":     recBy,
			})
		}
		if err := rows.Err(); err != nil {
			api.RespondWithResult(w, false, "Failed to read ledger entry lines")
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}
