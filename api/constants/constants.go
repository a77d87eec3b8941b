package constants

// Authentication and session errors.
const (
	ErrInvalidSession   = "invalid user_id or session"
	ErrMissingUserID    = "Missing or invalid user_id in body"
	ErrUserIDRequired   = "user_id required"
	ErrPleaseLogin      = "Please login to continue."
	ErrMethodNotAllowed = "Method Not Allowed"
)

// Generic request/DB errors.
const (
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrInvalidRequestBody = "Invalid request body"
	ErrFailedToQuery      = "Failed to query"
	ErrDB                 = "DB error"
)

// Ledger / reconciliation errors. ErrBalanceMismatch takes the cleared and
// ending balances in that order.
const (
	ErrAccountNotFound       = "Bank account not found or you don't have access to it"
	ErrAccountNotApproved    = "Bank account is not approved for your company"
	ErrEndingBalanceRequired = "Enter the statement's ending balance before reconciling"
	ErrBalanceMismatch       = "Cleared balance %s does not match the ending balance %s. Clear or unclear transactions until they agree"
	ErrStatementNotFound     = "Bank statement not found"
	ErrStatementDuplicate    = "This bank statement file was already uploaded earlier. Please upload a different file."
)

// Content types.
const (
	ContentTypeHeader    = "Content-Type"
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
)

// Date formats.
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)

// Request body keys.
const (
	KeyUserID = "user_id"
)

// NBSP shows up in spreadsheet cells pasted from bank portals.
const NBSP = " "
