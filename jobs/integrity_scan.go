package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/stockyard-wms/stockyard/internal/jobs"
)

// IntegrityScanJob re-verifies the ledger invariants directly against the
// database: non-negative stock, layer remaining within bounds, and trace
// entries consistent with the layers they reference. The transactional
// engine upholds these by construction; the scan catches drift from
// manual intervention or partial migrations.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type integrityCheck struct {
	name  string
	query string
}

var integrityChecks = []integrityCheck{
	{
		name:  "negative_stock",
		query: `SELECT item_id, location_id FROM stock_levels WHERE qty < 0 LIMIT $1`,
	},
	{
		name:  "negative_layer_remaining",
		query: `SELECT item_id, location_id FROM cost_layers WHERE remaining_qty < 0 LIMIT $1`,
	},
	{
		name:  "layer_remaining_exceeds_original",
		query: `SELECT item_id, location_id FROM cost_layers WHERE remaining_qty > original_qty LIMIT $1`,
	},
	{
		name: "trace_orphaned_layer",
		query: `SELECT t.layer_item_id, t.layer_location_id FROM consumption_traces t
			WHERE t.layer_source_invoice_id IS NOT NULL AND NOT t.synthetic
			  AND NOT EXISTS (
				SELECT 1 FROM cost_layers l
				WHERE l.source_invoice_id = t.layer_source_invoice_id
				  AND l.item_id = t.layer_item_id AND l.location_id = t.layer_location_id)
			LIMIT $1`,
	},
	{
		name: "trace_overdraws_layer",
		query: `SELECT l.item_id, l.location_id FROM cost_layers l
			JOIN LATERAL (
				SELECT COALESCE(SUM(CASE WHEN t.entry_type = 'CONSUME' THEN t.qty - t.returned_qty ELSE 0 END), 0) AS drawn
				FROM consumption_traces t
				WHERE t.layer_source_invoice_id = l.source_invoice_id
				  AND t.layer_item_id = l.item_id AND t.layer_location_id = l.location_id
				  AND NOT t.synthetic
			) u ON TRUE
			WHERE l.remaining_qty + u.drawn > l.original_qty LIMIT $1`,
	},
}

// Handle executes the integrity scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxViolations <= 0 {
		payload.MaxViolations = 100
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrityScan)
	start := time.Now()
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	total := 0
	for _, check := range integrityChecks {
		count, err := j.runCheck(ctx, check, payload.MaxViolations)
		if err != nil {
			resultErr = err
			j.logger().Error("integrity check failed", slog.String("check", check.name), slog.Any("error", err))
			return resultErr
		}
		if count > 0 {
			j.Metrics.AddViolations(check.name, count)
			total += count
		}
	}

	j.logger().Info("ledger integrity scan completed",
		slog.Int("violations", total),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *IntegrityScanJob) runCheck(ctx context.Context, check integrityCheck, limit int) (int, error) {
	rows, err := j.Pool.Query(ctx, check.query, limit)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var itemID, locationID int64
		if err := rows.Scan(&itemID, &locationID); err != nil {
			return count, err
		}
		count++
		j.logger().Warn("ledger invariant violated",
			slog.String("check", check.name),
			slog.Int64("item_id", itemID),
			slog.Int64("location_id", locationID),
		)
	}
	return count, rows.Err()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
