package rental

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/counters", h.Counters)
	r.Get("/invoices/{invoiceID}/items", h.ListByInvoice)
	r.Post("/items/{id}/give", h.Give)
	r.Post("/items/{id}/return", h.Return)
	r.Post("/items/{id}/borrow-to-main", h.BorrowToMain)
}

func (h *Handler) Counters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.service.Counters(r.Context())
	if err != nil {
		h.logger.Error("list rental counters failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"counters": counters})
}

func (h *Handler) ListByInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be an integer")
		return
	}
	items, err := h.service.ListByInvoice(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Give(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) (RentedItem, error) {
		return h.service.Give(r.Context(), id)
	})
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) (RentedItem, error) {
		return h.service.Return(r.Context(), id)
	})
}

type borrowForm struct {
	LocationID int64 `json:"location_id"`
}

func (h *Handler) BorrowToMain(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be an integer")
		return
	}
	var form borrowForm
	if err := httpx.DecodeJSON(r, &form); err != nil || form.LocationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id is required")
		return
	}
	item, err := h.service.BorrowToMain(r.Context(), id, form.LocationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(int64) (RentedItem, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be an integer")
		return
	}
	item, err := fn(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid State Transition", err.Error())
	default:
		h.logger.Error("rental request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
