package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan re-checks the stock ledger invariants.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskIdempotencyCleanup prunes processed request keys past retention.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// IntegrityScanPayload configures one ledger integrity scan.
type IntegrityScanPayload struct {
	// MaxViolations caps how many offending rows each check reports.
	MaxViolations int `json:"max_violations"`
}

// NewIntegrityScanTask constructs an Asynq task for the ledger scan.
func NewIntegrityScanTask(maxViolations int) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{MaxViolations: maxViolations})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// IdempotencyCleanupPayload configures the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
