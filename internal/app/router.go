package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockyard-wms/stockyard/internal/invoice"
	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/masterdata/employees"
	"github.com/stockyard-wms/stockyard/internal/masterdata/items"
	"github.com/stockyard-wms/stockyard/internal/masterdata/locations"
	"github.com/stockyard-wms/stockyard/internal/masterdata/suppliers"
	"github.com/stockyard-wms/stockyard/internal/observability"
	"github.com/stockyard-wms/stockyard/internal/rental"
	"github.com/stockyard-wms/stockyard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	EmployeeService  *employees.Service
	StockHandler     *ledger.Handler
	InvoiceHandler   *invoice.Handler
	RentalHandler    *rental.Handler
	ItemsHandler     *items.Handler
	LocationsHandler *locations.Handler
	SuppliersHandler *suppliers.Handler
	EmployeesHandler *employees.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Employees: params.EmployeeService,
		Metrics:   params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.Route("/rental", params.RentalHandler.MountRoutes)
		r.Route("/masterdata", func(r chi.Router) {
			r.Route("/items", params.ItemsHandler.MountRoutes)
			r.Route("/locations", params.LocationsHandler.MountRoutes)
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
			r.Route("/employees", params.EmployeesHandler.MountRoutes)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
