package api

import (
	"context"
	"strings"

	"ConstructaSaas/api/auth"
)

type contextKey string

// Context keys populated by LedgerContextMiddleware.
const (
	SessionKey          contextKey = "session"
	CompanyIDKey        contextKey = "companyID"
	ApprovedAccountsKey contextKey = "approvedBankAccounts"
)

// ApprovedAccount is the minimal bank-account view attached to the request
// context for access checks.
type ApprovedAccount struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
}

// RequestedByFromCtx resolves the display name of the acting user, falling
// back to a session scan and finally the raw user id.
func RequestedByFromCtx(ctx context.Context, userID string) string {
	if v := ctx.Value(SessionKey); v != nil {
		if s, ok := v.(*auth.UserSession); ok && s != nil {
			if strings.TrimSpace(s.Name) != "" {
				return s.Name
			}
			if strings.TrimSpace(s.UserID) != "" {
				return s.UserID
			}
		}
	}
	for _, s := range auth.GetActiveSessions() {
		if s.UserID == userID {
			return s.Name
		}
	}
	return userID
}

// CompanyIDFromCtx returns the acting company: the session's company when the
// middleware attached one, otherwise the explicit override from the request.
func CompanyIDFromCtx(ctx context.Context, override string) string {
	if v := ctx.Value(CompanyIDKey); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return override
}

// ApprovedAccountsFromCtx returns the bank accounts the acting user may see.
func ApprovedAccountsFromCtx(ctx context.Context) []ApprovedAccount {
	if v := ctx.Value(ApprovedAccountsKey); v != nil {
		if accounts, ok := v.([]ApprovedAccount); ok {
			return accounts
		}
	}
	return nil
}

// CtxHasApprovedAccount reports whether the account is in the approved set.
// An absent set means no restriction was loaded.
func CtxHasApprovedAccount(ctx context.Context, accountID string) bool {
	accounts := ApprovedAccountsFromCtx(ctx)
	if accounts == nil {
		return true
	}
	for _, a := range accounts {
		if a.AccountID == accountID {
			return true
		}
	}
	return false
}
