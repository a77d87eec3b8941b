package ledger

import (
	"database/sql"

	"ConstructaSaas/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerService struct {
	config  map[string]interface{}
	db      *sql.DB
	pgxPool *pgxpool.Pool
}

func NewLedgerService(cfg map[string]interface{}, db *sql.DB, pgxPool *pgxpool.Pool) serviceiface.Service {
	return &LedgerService{config: cfg, db: db, pgxPool: pgxPool}
}

func (s *LedgerService) Name() string {
	return "ledger"
}

func (s *LedgerService) Start() error {
	go StartLedgerService(s.db, s.pgxPool, PortFromConfig(s.config))
	return nil
}

func (s *LedgerService) Stop() error {
	return nil
}
