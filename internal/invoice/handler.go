package invoice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
	"github.com/stockyard-wms/stockyard/internal/rental"
	"github.com/stockyard-wms/stockyard/internal/shared"
)

// IdempotencyGuard is the slice of shared.IdempotencyStore the handler
// needs: claim a key up front, release it again when processing fails so
// the caller can retry with the same key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyGuard
}

func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyGuard) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/accredit", h.Accredit)
	r.Post("/{id}/confirm-request", h.ConfirmRequest)
	r.Post("/{id}/warranty-returns", h.WarrantyReturn)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	invoices, err := h.service.List(r.Context(), Kind(q.Get("kind")), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	insertedKey := false
	if key != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "invoice"); err != nil {
			h.respondError(w, err)
			return
		}
		insertedKey = true
	}
	// An error response promises that nothing changed, so the key is
	// released again and the caller may retry with it.
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		if insertedKey {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	inv, err := h.service.Create(r.Context(), draft)
	if err != nil {
		if insertedKey {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	inv, err := h.service.Update(r.Context(), id, draft)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.service.Submit)
}

func (h *Handler) Accredit(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.service.Accredit)
}

func (h *Handler) ConfirmRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	pr, err := h.service.ConfirmRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) WarrantyReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var form WarrantyReturnForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	inv, err := h.service.WarrantyReturn(r.Context(), id, form)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) statusTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id int64) (Invoice, error)) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrLayerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ledger.ErrInsufficientPricedInventory):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Priced Inventory", err.Error())
	case errors.Is(err, ErrReturnExceedsSold):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Return Exceeds Sold Quantity", err.Error())
	case errors.Is(err, ledger.ErrConsumedReference):
		httpx.Problem(w, http.StatusConflict, "Consumed Reference Conflict", err.Error())
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, rental.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid State Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrDuplicateLineItem):
		httpx.Problem(w, http.StatusBadRequest, "Duplicate Line Item", err.Error())
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrValidation), errors.Is(err, ErrPriceRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("invoice request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
