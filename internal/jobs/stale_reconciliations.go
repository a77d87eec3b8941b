package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"ConstructaSaas/internal/config"
	"ConstructaSaas/internal/logger"
	"ConstructaSaas/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// StaleReconConfig holds the monitor's schedule and threshold.
type StaleReconConfig struct {
	Schedule string
	TimeZone string
	MaxDays  int
}

func NewDefaultStaleReconConfig() StaleReconConfig {
	return StaleReconConfig{
		Schedule: config.DefaultStaleReconSchedule,
		TimeZone: config.DefaultTimeZone,
		MaxDays:  config.DefaultStaleReconciliationDays,
	}
}

// CronService runs the scheduled background jobs. The only one today is the
// stale-reconciliation monitor, which is read-only: it flags forgotten
// in_progress reconciliations in the audit log and mutates nothing.
type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{config: cfg, db: db}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	cfg := NewDefaultStaleReconConfig()
	if s.config != nil {
		if schedule, ok := s.config["stale_recon_schedule"].(string); ok && schedule != "" {
			cfg.Schedule = schedule
		}
		if tz, ok := s.config["timezone"].(string); ok && tz != "" {
			cfg.TimeZone = tz
		}
		if days, ok := s.config["stale_recon_days"].(int); ok && days > 0 {
			cfg.MaxDays = days
		}
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("bad timezone %q: %w", cfg.TimeZone, err)
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule, func() {
		reportStaleReconciliations(s.db, cfg.MaxDays)
	}); err != nil {
		return fmt.Errorf("schedule stale-reconciliation monitor: %w", err)
	}
	c.Start()
	s.cron = c

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Cron service started, stale reconciliation monitor scheduled")
	}
	log.Println("Cron service started, stale reconciliation monitor scheduled")
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return nil
}

func reportStaleReconciliations(pool *pgxpool.Pool, maxDays int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
        SELECT r.reconciliation_id, r.bank_account_id, b.account_name, r.created_at
        FROM reconciliations r
        JOIN bank_accounts b ON b.account_id = r.bank_account_id
        WHERE r.status = 'in_progress'
          AND r.created_at < now() - make_interval(days => $1)
        ORDER BY r.created_at`, maxDays)
	if err != nil {
		log.Printf("[ERROR] stale reconciliation query failed: %v", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var reconciliationID, accountID, accountName string
		var createdAt time.Time
		if err := rows.Scan(&reconciliationID, &accountID, &accountName, &createdAt); err != nil {
			log.Printf("[ERROR] stale reconciliation scan failed: %v", err)
			return
		}
		count++
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"reconciliation %s for account %s (%s) has been in progress since %s",
				reconciliationID, accountName, accountID, createdAt.Format("2006-01-02")))
		}
	}
	if count == 0 {
		log.Println("[INFO] no stale in-progress reconciliations")
	}
}
