package reconciliation

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	vals []string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i < len(r.vals) {
			*(dest[i].(*string)) = r.vals[i]
		}
	}
	return nil
}

type recordedExec struct {
	sql  string
	args []any
}

// fakeTx satisfies pgx.Tx for the methods the store uses; everything else
// panics via the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	rows       []fakeRow
	execs      []recordedExec
	committed  bool
	rolledBack bool
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	r := f.rows[0]
	f.rows = f.rows[1:]
	return r
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, recordedExec{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return f.tx, nil
}

func (f *fakeTx) findExec(t *testing.T, fragment string) recordedExec {
	t.Helper()
	for _, e := range f.execs {
		if strings.Contains(e.sql, fragment) {
			return e
		}
	}
	t.Fatalf("no statement containing %q was executed; got %d statements", fragment, len(f.execs))
	return recordedExec{}
}

func finalizableSession(t *testing.T) *Session {
	t.Helper()
	s := testSession(t)
	s.SetCleared("dep-1", TypeDeposit, true)
	ending := s.ClearedBalance()
	s.EndingBalance = &ending
	return s
}

// Re-finalizing a period that already has a completed row must also remove
// any in_progress row opened since, so the account is left with no phantom
// open session.
func TestFinalizeDropsLingeringInProgress(t *testing.T) {
	tx := &fakeTx{
		// The completed-row lookup for this account + ending date hits.
		rows: []fakeRow{{vals: []string{"rec-done"}}},
	}
	s := finalizableSession(t)

	id, err := Finalize(context.Background(), &fakeDB{tx: tx}, s, "", "Dana Ortiz")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if id != "rec-done" {
		t.Errorf("Finalize reused id %q, want rec-done", id)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}

	drop := tx.findExec(t, "status = 'in_progress' AND reconciliation_id <>")
	if len(drop.args) != 2 || drop.args[0] != s.AccountID || drop.args[1] != "rec-done" {
		t.Errorf("in_progress cleanup args = %v, want [%s rec-done]", drop.args, s.AccountID)
	}
}

func TestFinalizeScopesAccountUpdateByCompany(t *testing.T) {
	tx := &fakeTx{rows: []fakeRow{{vals: []string{"rec-done"}}}}
	s := finalizableSession(t)

	if _, err := Finalize(context.Background(), &fakeDB{tx: tx}, s, "", "Dana Ortiz"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	upd := tx.findExec(t, "UPDATE bank_accounts")
	if !strings.Contains(upd.sql, "company_id = $2") {
		t.Errorf("bank account update is not company scoped: %q", upd.sql)
	}
	if len(upd.args) < 2 || upd.args[0] != s.AccountID || upd.args[1] != s.CompanyID {
		t.Errorf("bank account update args = %v, want account %s company %s", upd.args, s.AccountID, s.CompanyID)
	}
}

func TestFinalizeCascadesClearedEntries(t *testing.T) {
	tx := &fakeTx{rows: []fakeRow{{vals: []string{"rec-done"}}}}
	s := finalizableSession(t)

	if _, err := Finalize(context.Background(), &fakeDB{tx: tx}, s, "", "Dana Ortiz"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	casc := tx.findExec(t, "UPDATE ledger_entry_lines")
	ids, ok := casc.args[0].([]string)
	if !ok || len(ids) != 1 || ids[0] != "entry-1" {
		t.Errorf("cascade entry ids = %v, want [entry-1]", casc.args[0])
	}
}

func TestFinalizeWithoutEndingBalanceFailsBeforeTx(t *testing.T) {
	tx := &fakeTx{}
	s := testSession(t)

	if _, err := Finalize(context.Background(), &fakeDB{tx: tx}, s, "", "Dana Ortiz"); err == nil {
		t.Fatal("Finalize without ending balance did not error")
	}
	if len(tx.execs) != 0 || tx.committed {
		t.Error("statements ran despite the missing ending balance")
	}
}

func TestSaveProgressReplacesAllItemsInOneTx(t *testing.T) {
	tx := &fakeTx{
		// The upsert RETURNING hands back the row id.
		rows: []fakeRow{{vals: []string{"rec-open"}}},
	}
	s := testSession(t)
	s.SetCleared("dep-1", TypeDeposit, true)

	id, err := SaveProgress(context.Background(), &fakeDB{tx: tx}, s, "Dana Ortiz")
	if err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if id != "rec-open" {
		t.Errorf("SaveProgress id = %q, want rec-open", id)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}

	tx.findExec(t, "DELETE FROM reconciliation_items")
	inserts := 0
	for _, e := range tx.execs {
		if strings.Contains(e.sql, "INSERT INTO reconciliation_items") {
			inserts++
		}
	}
	// Saving keeps the whole working set, cleared and uncleared alike.
	if want := len(s.AllItems()); inserts != want {
		t.Errorf("inserted %d item rows, want %d", inserts, want)
	}
}
