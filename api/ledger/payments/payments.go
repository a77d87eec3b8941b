package payments

import (
	"encoding/json"
	"net/http"
	"time"

	"ConstructaSaas/api"
	"ConstructaSaas/api/constants"
	"ConstructaSaas/api/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListPayments returns payment records for one bank account, optionally
// bounded by from/to dates, paginated. The bills screen reads this; the
// reconciliation engine sources its payment candidates from the same table.
func ListPayments(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID    string `json:"user_id"`
			CompanyID string `json:"company_id,omitempty"`
			AccountID string `json:"account_id"`
			From      string `json:"from,omitempty"`
			To        string `json:"to,omitempty"`
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

		from := time.Time{}
		to := time.Now().AddDate(100, 0, 0)
		var err error
		if req.From != "" {
			if from, err = time.Parse(constants.DateFormat, req.From); err != nil {
				api.RespondWithResult(w, false, "bad from date: use "+constants.DateFormat)
				return
			}
		}
		if req.To != "" {
			if to, err = time.Parse(constants.DateFormat, req.To); err != nil {
				api.RespondWithResult(w, false, "bad to date: use "+constants.DateFormat)
				return
			}
		}

		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithResult(w, false, err.Error())
			return
		}
		total, err := utils.CountTotalPool(ctx, pool, `
            SELECT COUNT(*) FROM payments
            WHERE bank_account_id = $1 AND company_id = $2
              AND payment_date >= $3 AND payment_date <= $4`,
			req.AccountID, companyID, from, to)
		if err != nil {
			api.LogError("ListPayments count failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" payments")
			return
		}
		pagination.SetPaginationStats(total)

		rows, err := pool.Query(ctx, `
            SELECT payment_id, payment_date, amount::text,
                   COALESCE(payee, ''), COALESCE(reference, '')
            FROM payments
            WHERE bank_account_id = $1 AND company_id = $2
              AND payment_date >= $3 AND payment_date <= $4
            ORDER BY payment_date DESC, payment_id
            LIMIT $5 OFFSET $6`,
			req.AccountID, companyID, from, to, pagination.Limit, pagination.Offset)
		if err != nil {
			api.LogError("ListPayments query failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" payments")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var id, amount, payee, reference string
			var date time.Time
			if err := rows.Scan(&id, &date, &amount, &payee, &reference); err != nil {
				api.RespondWithResult(w, false, constants.ErrFailedToQuery+" payments")
				return
			}
			out = append(out, map[string]interface{}{
				"payment_id":   id,
				"payment_date": date.Format(constants.DateFormat),
				"amount":       amount,
				"payee":        payee,
				"reference":    reference,
			})
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"payments":   out,
			"pagination": pagination,
		})
	}
}
