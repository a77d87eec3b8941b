package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is satisfied by both *pgxpool.Pool and pgx.Tx, so the cascade can
// run standalone (toggle) or inside the finalize transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DistinctEntryIDs de-duplicates entry ids while keeping first-seen order,
// dropping empties. The cascade batches one UPDATE per distinct set, never
// per line.
func DistinctEntryIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// EntryIDForLine resolves the parent ledger entry of one line. Scoped to the
// company so a line id from another tenant resolves to nothing.
func EntryIDForLine(ctx context.Context, pool *pgxpool.Pool, lineID, companyID string) (string, error) {
	var entryID string
	err := pool.QueryRow(ctx, `
        SELECT l.entry_id
        FROM ledger_entry_lines l
        JOIN ledger_entries e ON e.entry_id = l.entry_id
        WHERE l.line_id = $1 AND e.company_id = $2`, lineID, companyID).Scan(&entryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ledger line %s not found", lineID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve entry for line %s: %w", lineID, err)
	}
	return entryID, nil
}

// EntryInCompany reports whether the ledger entry belongs to the company.
func EntryInCompany(ctx context.Context, pool *pgxpool.Pool, entryID, companyID string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE entry_id = $1 AND company_id = $2)`,
		entryID, companyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entry %s: %w", entryID, err)
	}
	return exists, nil
}

// SetEntriesReconciled sets or clears the reconciled flag on every line
// under each given entry. The entry, not the line, is the unit of
// reconciliation: toggling any one line flips all of its siblings too.
// Returns the number of lines touched.
func SetEntriesReconciled(ctx context.Context, db Execer, entryIDs []string, reconciled bool, actor string) (int64, error) {
	entryIDs = DistinctEntryIDs(entryIDs)
	if len(entryIDs) == 0 {
		return 0, nil
	}
	tag, err := db.Exec(ctx, `
        UPDATE ledger_entry_lines SET
            is_reconciled = $2,
            reconciled_at = CASE WHEN $2 THEN now() ELSE NULL END,
            reconciled_by = CASE WHEN $2 THEN $3 ELSE NULL END
        WHERE entry_id = ANY($1)`,
		entryIDs, reconciled, actor)
	if err != nil {
		return 0, fmt.Errorf("update %d entries: %w", len(entryIDs), err)
	}
	return tag.RowsAffected(), nil
}
