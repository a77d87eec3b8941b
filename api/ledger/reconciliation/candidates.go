package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Candidate sourcing. Deposits are posted ledger lines with a positive debit
// against the account's linked ledger account; payments are payment records
// for the bank account plus posted ledger lines with a positive credit.
// Anything already cleared in a prior completed reconciliation for the same
// account is filtered out before the sets are returned.

const depositLinesQuery = `
    SELECT l.line_id, l.entry_id, e.entry_date, l.debit::text,
           COALESCE(NULLIF(l.description, ''), e.description, ''),
           COALESCE(l.reference, '')
    FROM ledger_entry_lines l
    JOIN ledger_entries e ON e.entry_id = l.entry_id
    WHERE l.ledger_account_id = $1
      AND e.company_id = $2
      AND e.status = 'POSTED'
      AND l.debit > 0
      AND e.entry_date <= $3
    ORDER BY e.entry_date, l.line_id`

const creditLinesQuery = `
    SELECT l.line_id, l.entry_id, e.entry_date, l.credit::text,
           COALESCE(NULLIF(l.description, ''), e.description, ''),
           COALESCE(l.reference, '')
    FROM ledger_entry_lines l
    JOIN ledger_entries e ON e.entry_id = l.entry_id
    WHERE l.ledger_account_id = $1
      AND e.company_id = $2
      AND e.status = 'POSTED'
      AND l.credit > 0
      AND e.entry_date <= $3
    ORDER BY e.entry_date, l.line_id`

const paymentRecordsQuery = `
    SELECT payment_id, payment_date, amount::text,
           COALESCE(payee, ''), COALESCE(reference, '')
    FROM payments
    WHERE bank_account_id = $1
      AND company_id = $2
      AND payment_date <= $3
    ORDER BY payment_date, payment_id`

const priorClearedQuery = `
    SELECT ri.transaction_id
    FROM reconciliation_items ri
    JOIN reconciliations r ON r.reconciliation_id = ri.reconciliation_id
    WHERE r.bank_account_id = $1
      AND r.status = 'completed'
      AND ri.cleared = TRUE`

func loadLedgerCandidates(ctx context.Context, pool *pgxpool.Pool, query, candidateType, ledgerAccountID, companyID string, endingDate time.Time) ([]Candidate, error) {
	rows, err := pool.Query(ctx, query, ledgerAccountID, companyID, endingDate)
	if err != nil {
		return nil, fmt.Errorf("query ledger lines: %w", err)
	}
	defer rows.Close()

	out := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		var amountStr string
		if err := rows.Scan(&c.ID, &c.EntryID, &c.Date, &amountStr, &c.Description, &c.Reference); err != nil {
			return nil, fmt.Errorf("scan ledger line: %w", err)
		}
		c.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q on line %s: %w", amountStr, c.ID, err)
		}
		c.Type = candidateType
		c.Source = SourceLedger
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadPaymentRecords(ctx context.Context, pool *pgxpool.Pool, accountID, companyID string, endingDate time.Time) ([]Candidate, error) {
	rows, err := pool.Query(ctx, paymentRecordsQuery, accountID, companyID, endingDate)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	out := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		var amountStr string
		if err := rows.Scan(&c.ID, &c.Date, &amountStr, &c.Description, &c.Reference); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		c.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q on payment %s: %w", amountStr, c.ID, err)
		}
		c.Type = TypePayment
		c.Source = SourcePayment
		out = append(out, c)
	}
	return out, rows.Err()
}

// priorClearedIDs collects transaction ids already cleared in any completed
// reconciliation for the account. Collected once up front, then used to
// filter both candidate sets.
func priorClearedIDs(ctx context.Context, pool *pgxpool.Pool, accountID string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, priorClearedQuery, accountID)
	if err != nil {
		return nil, fmt.Errorf("query prior reconciled items: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// excludePrior drops candidates whose transaction id appears in a completed
// reconciliation. A transaction is reconciled at most once per account.
func excludePrior(candidates []Candidate, prior map[string]bool) []Candidate {
	if len(prior) == 0 {
		return candidates
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !prior[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// LoadCandidates builds both candidate sets for a reconciliation session up
// to the ending date. ledgerAccountID may be empty when the bank account has
// no linked ledger account; only payment records are offered then.
func LoadCandidates(ctx context.Context, pool *pgxpool.Pool, accountID, companyID, ledgerAccountID string, endingDate time.Time) (deposits, payments []Candidate, err error) {
	prior, err := priorClearedIDs(ctx, pool, accountID)
	if err != nil {
		return nil, nil, err
	}

	deposits = make([]Candidate, 0)
	payments = make([]Candidate, 0)

	if ledgerAccountID != "" {
		deposits, err = loadLedgerCandidates(ctx, pool, depositLinesQuery, TypeDeposit, ledgerAccountID, companyID, endingDate)
		if err != nil {
			return nil, nil, err
		}
		credits, err := loadLedgerCandidates(ctx, pool, creditLinesQuery, TypePayment, ledgerAccountID, companyID, endingDate)
		if err != nil {
			return nil, nil, err
		}
		payments = append(payments, credits...)
	}

	records, err := loadPaymentRecords(ctx, pool, accountID, companyID, endingDate)
	if err != nil {
		return nil, nil, err
	}
	payments = append(payments, records...)

	return excludePrior(deposits, prior), excludePrior(payments, prior), nil
}
