package ledger

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"ConstructaSaas/api"
	"ConstructaSaas/api/ledger/bankaccounts"
	"ConstructaSaas/api/ledger/journal"
	"ConstructaSaas/api/ledger/payments"
	"ConstructaSaas/api/ledger/reconciliation"
	"ConstructaSaas/api/ledger/statements"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartLedgerService serves the general-ledger module: bank accounts,
// payments, journal entries, bank statements, and the reconciliation engine.
// Every route sits behind LedgerContextMiddleware, which validates the
// session and loads the acting company's accounts into the context.
func StartLedgerService(db *sql.DB, pgxPool *pgxpool.Pool, port string) {
	if port == "" {
		port = "6243"
	}

	router := mux.NewRouter()
	sub := router.PathPrefix("/ledger").Subrouter()
	sub.Use(api.LedgerContextMiddleware(pgxPool))

	sub.Handle("/accounts", bankaccounts.ListBankAccounts(db)).Methods("POST")
	sub.Handle("/accounts/get", bankaccounts.GetBankAccount(db)).Methods("POST")
	sub.Handle("/accounts/link-ledger-account", bankaccounts.LinkLedgerAccount(db)).Methods("POST")

	sub.Handle("/payments", payments.ListPayments(pgxPool)).Methods("POST")
	sub.Handle("/journal/entry-lines", journal.ListEntryLines(pgxPool)).Methods("POST")
	sub.Handle("/journal/accounts", journal.ListLedgerAccounts(pgxPool)).Methods("POST")

	sub.Handle("/reconciliation/start", reconciliation.StartSession(pgxPool)).Methods("POST")
	sub.Handle("/reconciliation/toggle", reconciliation.ToggleCleared(pgxPool)).Methods("POST")
	sub.Handle("/reconciliation/save", reconciliation.SaveProgressHandler(pgxPool)).Methods("POST")
	sub.Handle("/reconciliation/reconcile", reconciliation.FinalizeHandler(pgxPool)).Methods("POST")
	sub.Handle("/reconciliation/history", reconciliation.HistoryHandler(pgxPool)).Methods("POST")

	sub.Handle("/statements/upload", statements.UploadStatement(pgxPool)).Methods("POST")
	sub.Handle("/statements/url", statements.StatementURL(pgxPool)).Methods("POST")
	sub.Handle("/statements", statements.ListStatements(pgxPool)).Methods("POST")

	router.HandleFunc("/ledger/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello from Ledger Service"))
	})

	log.Println("Ledger Service started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Ledger Service failed: %v", err)
	}
}

// PortFromConfig pulls the service port out of the services.yaml config map.
func PortFromConfig(cfg map[string]interface{}) string {
	if cfg == nil {
		return ""
	}
	if p, ok := cfg["port"]; ok {
		return fmt.Sprintf("%v", p)
	}
	return ""
}
