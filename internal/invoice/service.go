package invoice

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/platform/cache"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	"github.com/stockyard-wms/stockyard/internal/shared"
)

// Service runs invoice operations: each mutation is one transaction over
// the invoice rows, the stock ledger and the rental state, followed by
// an audit record and stock cache invalidation.
type Service struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	audit     *shared.AuditLogger
	approvals *shared.ApprovalRecorder
	cache     *cache.Store
	runTx     func(ctx context.Context, fn func(TxRepository) error) error
}

func NewService(pool *pgxpool.Pool, logger *slog.Logger, audit *shared.AuditLogger,
	approvals *shared.ApprovalRecorder, cacheStore *cache.Store) *Service {
	s := &Service{pool: pool, logger: logger, audit: audit, approvals: approvals, cache: cacheStore}
	s.runTx = func(ctx context.Context, fn func(TxRepository) error) error {
		return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			return fn(NewTxRepo(tx))
		})
	}
	return s
}

func (s *Service) withRepo(ctx context.Context, fn func(TxRepository) error) error {
	return s.runTx(ctx, fn)
}

// Create posts a new invoice of any kind.
func (s *Service) Create(ctx context.Context, draft Draft) (Invoice, error) {
	actor, _ := shared.ActorFromContext(ctx)
	var inv Invoice
	err := s.withRepo(ctx, func(repo TxRepository) error {
		var err error
		inv, err = CreateInvoice(ctx, repo, draft, actor.ID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.afterMutation(ctx, "invoice.create", inv)
	return inv, nil
}

// Update reverses the invoice and reapplies the new draft atomically.
func (s *Service) Update(ctx context.Context, id int64, draft Draft) (Invoice, error) {
	var inv Invoice
	err := s.withRepo(ctx, func(repo TxRepository) error {
		var err error
		inv, err = UpdateInvoice(ctx, repo, id, draft)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.afterMutation(ctx, "invoice.update", inv)
	return inv, nil
}

// Delete reverses the invoice and removes it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.withRepo(ctx, func(repo TxRepository) error {
		return DeleteInvoice(ctx, repo, id)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, "invoice.delete", Invoice{ID: id})
	return nil
}

// Submit moves the invoice from draft to accreditation.
func (s *Service) Submit(ctx context.Context, id int64) (Invoice, error) {
	return s.transition(ctx, id, SubmitInvoice, shared.ApprovalSubmit)
}

// Accredit moves the invoice from accreditation to confirmed.
func (s *Service) Accredit(ctx context.Context, id int64) (Invoice, error) {
	return s.transition(ctx, id, AccreditInvoice, shared.ApprovalAccredit)
}

func (s *Service) transition(ctx context.Context, id int64,
	fn func(context.Context, TxRepository, int64) (Invoice, error), action shared.ApprovalAction) (Invoice, error) {
	var inv Invoice
	err := s.withRepo(ctx, func(repo TxRepository) error {
		var err error
		inv, err = fn(ctx, repo, id)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	actor, _ := shared.ActorFromContext(ctx)
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "invoice",
		RefID:   inv.Ref,
		ActorID: actor.ID,
		Action:  action,
	}); err != nil {
		s.logger.Warn("approval record failed", "invoice_id", id, "error", err)
	}
	s.afterMutation(ctx, "invoice."+string(action), inv)
	return inv, nil
}

// ConfirmRequest confirms a purchase-request invoice's approval record.
func (s *Service) ConfirmRequest(ctx context.Context, invoiceID int64) (PurchaseRequest, error) {
	var pr PurchaseRequest
	var ref uuid.UUID
	err := s.withRepo(ctx, func(repo TxRepository) error {
		inv, err := repo.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		ref = inv.Ref
		pr, err = ConfirmPurchaseRequest(ctx, repo, invoiceID)
		return err
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	actor, _ := shared.ActorFromContext(ctx)
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "purchase_request",
		RefID:   ref,
		ActorID: actor.ID,
		Action:  shared.ApprovalConfirm,
	}); err != nil {
		s.logger.Warn("approval record failed", "invoice_id", invoiceID, "error", err)
	}
	return pr, nil
}

// WarrantyReturn records a partial return on a warranty invoice.
func (s *Service) WarrantyReturn(ctx context.Context, invoiceID int64, form WarrantyReturnForm) (Invoice, error) {
	actor, _ := shared.ActorFromContext(ctx)
	var inv Invoice
	err := s.withRepo(ctx, func(repo TxRepository) error {
		var err error
		inv, err = RecordWarrantyReturn(ctx, repo, invoiceID, form, actor.ID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.afterMutation(ctx, "invoice.warranty_return", inv)
	return inv, nil
}

// Get loads one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := s.withRepo(ctx, func(repo TxRepository) error {
		var err error
		inv, err = repo.InvoiceForUpdate(ctx, id)
		return err
	})
	return inv, err
}

// List returns invoice headers, newest first, optionally filtered by
// kind.
func (s *Service) List(ctx context.Context, kind Kind, limit, offset int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []interface{}{}
	if kind != "" {
		if !kind.Valid() {
			return nil, ErrUnknownKind
		}
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Ref, &inv.Kind, &inv.Status, &inv.SupplierID,
			&inv.MachineID, &inv.MechanismID, &inv.OriginalInvoiceID, &inv.Total, &inv.Paid,
			&inv.Residual, &inv.Description, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Service) afterMutation(ctx context.Context, action string, inv Invoice) {
	actor, _ := shared.ActorFromContext(ctx)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     map[string]any{"kind": inv.Kind, "total": inv.Total},
	}); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
	if err := s.cache.Invalidate(ctx, "stock:"); err != nil {
		s.logger.Warn("cache invalidation failed", "error", err)
	}
}
