package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ConstructaSaas/api/ledger/journal"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reconciliation statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// txBeginner is the slice of *pgxpool.Pool the write paths need.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InProgress is the persisted shape of an unfinished reconciliation, loaded
// when a session is reopened.
type InProgress struct {
	ReconciliationID string
	EndingBalance    *string
	EndingDate       *time.Time
	ClearedIDs       map[string]bool
}

// FindInProgress loads the account's in_progress reconciliation and the
// cleared flags of its saved items. Returns nil when none exists.
func FindInProgress(ctx context.Context, pool *pgxpool.Pool, accountID string) (*InProgress, error) {
	const q = `
        SELECT reconciliation_id, ending_balance::text, ending_date
        FROM reconciliations
        WHERE bank_account_id = $1 AND status = 'in_progress'
        ORDER BY created_at DESC
        LIMIT 1`
	var rec InProgress
	err := pool.QueryRow(ctx, q, accountID).Scan(&rec.ReconciliationID, &rec.EndingBalance, &rec.EndingDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query in_progress reconciliation: %w", err)
	}

	rec.ClearedIDs = make(map[string]bool)
	rows, err := pool.Query(ctx,
		`SELECT transaction_id FROM reconciliation_items WHERE reconciliation_id = $1 AND cleared = TRUE`,
		rec.ReconciliationID)
	if err != nil {
		return nil, fmt.Errorf("query saved items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		rec.ClearedIDs[id] = true
	}
	return &rec, rows.Err()
}

// LatestCompleted returns the ending balance (as numeric text) and ending
// date of the most recent completed reconciliation, or ok=false when the
// account has never been reconciled.
func LatestCompleted(ctx context.Context, pool *pgxpool.Pool, accountID string) (endingBalance string, endingDate time.Time, ok bool, err error) {
	const q = `
        SELECT ending_balance::text, ending_date
        FROM reconciliations
        WHERE bank_account_id = $1 AND status = 'completed'
        ORDER BY ending_date DESC
        LIMIT 1`
	err = pool.QueryRow(ctx, q, accountID).Scan(&endingBalance, &endingDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("query last completed reconciliation: %w", err)
	}
	return endingBalance, endingDate, true, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, reconciliationID string, items []Candidate, stampCleared bool) error {
	const ins = `
        INSERT INTO reconciliation_items
            (item_id, reconciliation_id, transaction_type, transaction_id, amount, cleared, cleared_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now()
	for _, c := range items {
		var clearedAt *time.Time
		if c.Cleared && stampCleared {
			clearedAt = &now
		}
		if _, err := tx.Exec(ctx, ins,
			uuid.New().String(), reconciliationID, c.Type, c.ID,
			c.Amount.String(), c.Cleared, clearedAt,
		); err != nil {
			return fmt.Errorf("insert item %s: %w", c.ID, err)
		}
	}
	return nil
}

func endingBalanceArg(s *Session) *string {
	if s.EndingBalance == nil {
		return nil
	}
	v := s.EndingBalance.StringFixed(2)
	return &v
}

// SaveProgress upserts the account's in_progress reconciliation row and
// replaces its item rows with the full candidate set, cleared and uncleared
// alike. The whole replace runs in one transaction so a failure leaves the
// previously saved state intact. The partial unique index on
// (bank_account_id) WHERE status='in_progress' makes the upsert safe against
// two sessions racing to create the row.
func SaveProgress(ctx context.Context, db txBeginner, s *Session, actor string) (string, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
        INSERT INTO reconciliations
            (reconciliation_id, company_id, bank_account_id, status,
             beginning_balance, beginning_date, ending_balance, ending_date,
             cleared_balance, adjusted_balance, created_by, created_at)
        VALUES ($1, $2, $3, 'in_progress', $4, $5, $6, $7, $8, $9, $10, now())
        ON CONFLICT (bank_account_id) WHERE status = 'in_progress'
        DO UPDATE SET
            beginning_balance = EXCLUDED.beginning_balance,
            beginning_date    = EXCLUDED.beginning_date,
            ending_balance    = EXCLUDED.ending_balance,
            ending_date       = EXCLUDED.ending_date,
            cleared_balance   = EXCLUDED.cleared_balance,
            adjusted_balance  = EXCLUDED.adjusted_balance
        RETURNING reconciliation_id`
	var reconciliationID string
	err = tx.QueryRow(ctx, upsert,
		uuid.New().String(), s.CompanyID, s.AccountID,
		s.BeginningBalance.StringFixed(2), s.BeginningDate,
		endingBalanceArg(s), s.EndingDate,
		s.ClearedBalance().StringFixed(2), s.AdjustedBalance().StringFixed(2),
		actor,
	).Scan(&reconciliationID)
	if err != nil {
		return "", fmt.Errorf("upsert reconciliation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM reconciliation_items WHERE reconciliation_id = $1`, reconciliationID); err != nil {
		return "", fmt.Errorf("clear items: %w", err)
	}
	if err := insertItems(ctx, tx, reconciliationID, s.AllItems(), false); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return reconciliationID, nil
}

// Finalize promotes the session to a completed reconciliation. Callers must
// have checked the balance preconditions already; this function only
// persists. In one transaction it: marks the reconciliation completed
// (reusing a completed row for the same account and ending date, so
// re-finalizing a period is an update, not a duplicate), replaces item rows
// with the cleared subset, cascades the reconciled flag over every touched
// ledger entry, overwrites the bank account's balance and as-of date, and
// stamps the attached statement's period when one is linked.
func Finalize(ctx context.Context, db txBeginner, s *Session, statementID, actor string) (string, error) {
	if s.EndingBalance == nil {
		return "", errors.New("ending balance not set")
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ending := s.EndingBalance.StringFixed(2)

	// Reuse the completed row for this exact period when one exists.
	var reconciliationID string
	err = tx.QueryRow(ctx,
		`SELECT reconciliation_id FROM reconciliations
         WHERE bank_account_id = $1 AND status = 'completed' AND ending_date = $2`,
		s.AccountID, s.EndingDate).Scan(&reconciliationID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`SELECT reconciliation_id FROM reconciliations
             WHERE bank_account_id = $1 AND status = 'in_progress'`,
			s.AccountID).Scan(&reconciliationID)
		if errors.Is(err, pgx.ErrNoRows) {
			reconciliationID = uuid.New().String()
			_, err = tx.Exec(ctx,
				`INSERT INTO reconciliations
                    (reconciliation_id, company_id, bank_account_id, status,
                     beginning_balance, beginning_date, ending_balance, ending_date,
                     cleared_balance, adjusted_balance, created_by, created_at)
                 VALUES ($1, $2, $3, 'in_progress', $4, $5, $6, $7, $8, $9, $10, now())`,
				reconciliationID, s.CompanyID, s.AccountID,
				s.BeginningBalance.StringFixed(2), s.BeginningDate,
				ending, s.EndingDate,
				s.ClearedBalance().StringFixed(2), s.AdjustedBalance().StringFixed(2),
				actor)
		}
		if err != nil {
			return "", fmt.Errorf("locate reconciliation: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("locate completed reconciliation: %w", err)
	}

	// A SaveProgress after the period was first completed leaves a fresh
	// in_progress row; fold it away so the account holds no open session
	// once this finalize commits.
	if _, err := tx.Exec(ctx,
		`DELETE FROM reconciliations
         WHERE bank_account_id = $1 AND status = 'in_progress' AND reconciliation_id <> $2`,
		s.AccountID, reconciliationID); err != nil {
		return "", fmt.Errorf("drop open reconciliation: %w", err)
	}

	var stmtArg *string
	if statementID != "" {
		stmtArg = &statementID
	}
	_, err = tx.Exec(ctx,
		`UPDATE reconciliations SET
            status = 'completed',
            beginning_balance = $2, beginning_date = $3,
            ending_balance = $4, ending_date = $5,
            cleared_balance = $6, adjusted_balance = $7,
            statement_id = COALESCE($8, statement_id),
            reconciled_by = $9, reconciled_at = now()
         WHERE reconciliation_id = $1`,
		reconciliationID,
		s.BeginningBalance.StringFixed(2), s.BeginningDate,
		ending, s.EndingDate,
		s.ClearedBalance().StringFixed(2), s.AdjustedBalance().StringFixed(2),
		stmtArg, actor)
	if err != nil {
		return "", fmt.Errorf("complete reconciliation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM reconciliation_items WHERE reconciliation_id = $1`, reconciliationID); err != nil {
		return "", fmt.Errorf("clear items: %w", err)
	}
	if err := insertItems(ctx, tx, reconciliationID, s.ClearedItems(), true); err != nil {
		return "", err
	}

	if entryIDs := s.ClearedEntryIDs(); len(entryIDs) > 0 {
		if _, err := journal.SetEntriesReconciled(ctx, tx, entryIDs, true, actor); err != nil {
			return "", fmt.Errorf("cascade reconciled flag: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE bank_accounts SET current_balance = $3, balance_as_of = $4
         WHERE account_id = $1 AND company_id = $2`,
		s.AccountID, s.CompanyID, ending, s.EndingDate)
	if err != nil {
		return "", fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("bank account %s not found for company %s", s.AccountID, s.CompanyID)
	}

	if statementID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE bank_statements SET
                period_end = $3,
                period_start = COALESCE(period_start, $4)
             WHERE statement_id = $1 AND company_id = $2`,
			statementID, s.CompanyID, s.EndingDate, s.BeginningDate); err != nil {
			return "", fmt.Errorf("stamp statement period: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return reconciliationID, nil
}

// History lists the account's completed reconciliations, newest period first.
func History(ctx context.Context, pool *pgxpool.Pool, accountID string) ([]map[string]interface{}, error) {
	const q = `
        SELECT reconciliation_id, beginning_balance::text, beginning_date,
               ending_balance::text, ending_date, cleared_balance::text,
               reconciled_by, reconciled_at
        FROM reconciliations
        WHERE bank_account_id = $1 AND status = 'completed'
        ORDER BY ending_date DESC`
	rows, err := pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, begBal, endBal, clrBal string
		var begDate, endDate time.Time
		var by *string
		var at *time.Time
		if err := rows.Scan(&id, &begBal, &begDate, &endBal, &endDate, &clrBal, &by, &at); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"reconciliation_id": id,
			"beginning_balance": begBal,
			"beginning_date":    begDate.Format("2006-01-02"),
			"ending_balance":    endBal,
			"ending_date":       endDate.Format("2006-01-02"),
			"cleared_balance":   clrBal,
			"reconciled_by":     by,
			"reconciled_at":     at,
		})
	}
	return out, rows.Err()
}
