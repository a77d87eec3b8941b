package config

const (
	DefaultTimeZone = "America/Chicago"

	// Stale in_progress reconciliations get flagged in the audit log when
	// untouched this many days.
	DefaultStaleReconciliationDays = 14
	DefaultStaleReconSchedule      = "0 7 * * *"

	BatchSize = 1000
)
