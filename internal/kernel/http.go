// Package kernel assembles the HTTP handler: the global middleware stack,
// operational endpoints and the API routes.
package kernel

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/storefront/app/routes"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

type HTTPKernel struct {
	router  *router.Router
	limiter *middleware.RateLimiter
}

// NewHTTPKernel wires the middleware stack, outermost first:
//
//  1. metrics, so latency covers everything below
//  2. recovery
//  3. request id, before anything logs
//  4. access log
//  5. CORS
//  6. rate limiter
func NewHTTPKernel(cfg config.App, api routes.API) *HTTPKernel {
	r := router.New()

	cors := middleware.DefaultCORSOptions()
	if len(cfg.CORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSOrigins
	}

	k := &HTTPKernel{router: r}

	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(cors))
	if cfg.RateLimit > 0 {
		k.limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		r.Use(k.limiter.Middleware)
	}

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", "health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	routes.RegisterAPI(r, api)
	return k
}

func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists every named endpoint.
func (k *HTTPKernel) Routes() []router.RouteInfo { return k.router.Routes() }

// Close stops the rate limiter's janitor.
func (k *HTTPKernel) Close() {
	if k.limiter != nil {
		k.limiter.Close()
	}
}
