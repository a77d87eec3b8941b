package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ConstructaSaas/api/auth"
	"ConstructaSaas/api/constants"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerContextMiddleware validates the acting user's session and attaches
// session, company id, and the company's bank accounts to the request
// context. The user id is carried in the JSON body or multipart form, so the
// body is re-buffered for the handler after extraction.
func LedgerContextMiddleware(pgxPool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			ct := r.Header.Get(constants.ContentTypeHeader)
			switch {
			case strings.HasPrefix(ct, constants.ContentTypeJSON) && (r.Method == http.MethodPost || r.Method == http.MethodPut):
				bodyBytes, _ := io.ReadAll(r.Body)
				var bodyMap map[string]interface{}
				if err := json.Unmarshal(bodyBytes, &bodyMap); err == nil {
					if uid, ok := bodyMap[constants.KeyUserID].(string); ok {
						userID = uid
					}
				}
				r.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
			case strings.HasPrefix(ct, constants.ContentTypeMultipart) && (r.Method == http.MethodPost || r.Method == http.MethodPut):
				if err := r.ParseMultipartForm(32 << 20); err == nil {
					userID = r.FormValue(constants.KeyUserID)
				}
			}

			if userID == "" {
				LogError("Missing user_id in request (ledger middleware)")
				RespondWithPayload(w, false, constants.ErrMissingUserID, nil)
				return
			}

			var session *auth.UserSession
			for _, s := range auth.GetActiveSessions() {
				if s.UserID == userID {
					session = s
					break
				}
			}
			if session == nil {
				LogError("Invalid session for user_id: %s", userID)
				RespondWithPayload(w, false, constants.ErrInvalidSession, nil)
				return
			}

			auth.TouchSession(userID)

			companyID := session.CompanyID
			if companyID == "" {
				if err := pgxPool.QueryRow(r.Context(),
					"SELECT company_id FROM users WHERE id = $1", userID).Scan(&companyID); err != nil || companyID == "" {
					LogError("User %s has no company assigned", userID)
					RespondWithPayload(w, false, "User has no company assigned", nil)
					return
				}
			}

			rows, err := pgxPool.Query(r.Context(),
				`SELECT account_id, account_name FROM bank_accounts WHERE company_id = $1 ORDER BY account_name`,
				companyID)
			if err != nil {
				LogError("Failed to load bank accounts for company %s: %v", companyID, err)
				RespondWithPayload(w, false, constants.ErrFailedToQuery+" bank accounts", nil)
				return
			}
			accounts := make([]ApprovedAccount, 0)
			for rows.Next() {
				var a ApprovedAccount
				if err := rows.Scan(&a.AccountID, &a.AccountName); err != nil {
					rows.Close()
					RespondWithPayload(w, false, constants.ErrFailedToQuery+" bank accounts", nil)
					return
				}
				accounts = append(accounts, a)
			}
			rows.Close()

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, CompanyIDKey, companyID)
			ctx = context.WithValue(ctx, ApprovedAccountsKey, accounts)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
