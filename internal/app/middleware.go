package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/stockyard-wms/stockyard/internal/masterdata/employees"
	"github.com/stockyard-wms/stockyard/internal/observability"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
	"github.com/stockyard-wms/stockyard/internal/shared"
)

// ActorHeader carries the employee token identifying who performs a
// request.
const ActorHeader = "X-Employee-Token"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger    *slog.Logger
	Config    *Config
	Employees *employees.Service
	Metrics   *observability.Metrics
}

// MiddlewareStack installs the middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	// Actor resolution: reads are open, writes require a known employee.
	actorMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(ActorHeader)
			if token != "" && cfg.Employees != nil {
				actor, err := cfg.Employees.Resolve(r.Context(), token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
					return
				}
				cfg.Logger.Warn("actor token rejected", slog.String("path", r.URL.Path))
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "a valid "+ActorHeader+" header is required")
			}
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	ratePerMinute := 120
	if cfg.Config != nil && cfg.Config.RatePerMinute > 0 {
		ratePerMinute = cfg.Config.RatePerMinute
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(ratePerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		actorMiddleware,
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	return stack
}
