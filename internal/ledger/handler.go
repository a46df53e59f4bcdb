package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard-wms/stockyard/internal/platform/cache"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler serves the ledger read paths.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	cache  *cache.Store
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, repo *Repository, cache *cache.Store) *Handler {
	return &Handler{logger: logger, repo: repo, cache: cache}
}

// MountRoutes registers stock read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/levels", h.handleLevels)
	r.Get("/items/{itemID}/layers", h.handleLayers)
}

func (h *Handler) handleLevels(w http.ResponseWriter, r *http.Request) {
	filter := StockFilter{}
	q := r.URL.Query()
	if v := q.Get("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id must be an integer")
			return
		}
		filter.ItemID = id
	}
	if v := q.Get("location_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id must be an integer")
			return
		}
		filter.LocationID = id
	}

	var levels []StockLevel
	key := fmt.Sprintf("stock:levels:%d:%d", filter.ItemID, filter.LocationID)
	err := h.cache.FetchJSON(r.Context(), key, &levels, func(ctx context.Context) (any, error) {
		return h.repo.StockLevels(ctx, filter)
	})
	if err != nil {
		h.logger.Error("list stock levels", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) handleLayers(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be an integer")
		return
	}
	layers, err := h.repo.Layers(r.Context(), itemID)
	if err != nil {
		h.logger.Error("list cost layers", slog.Any("error", err), slog.Int64("item_id", itemID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, layers)
}
