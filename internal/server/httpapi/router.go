// Package httpapi is the HTTP transport of the auth service: a chi router
// with authentication middleware, a role gate, cookie handling, per-IP rate
// limiting on credential endpoints and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures NewRouter.
type Options struct {
	Logger  logging.Logger
	Metrics *Metrics
	// SecureCookies sets the Secure flag on auth cookies (production).
	SecureCookies      bool
	LoginRatePerMinute int
	LoginBurst         int
	Now                func() time.Time
}

// Router is the HTTP handler together with the background work it owns.
type Router struct {
	http.Handler
	limiter *ipRateLimiter
}

// RunJanitor evicts idle rate-limiter buckets until ctx is done.
func (rt *Router) RunJanitor(ctx context.Context) {
	rt.limiter.Run(ctx, time.Minute)
}

func NewRouter(svc AuthService, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LoginRatePerMinute <= 0 {
		opts.LoginRatePerMinute = 20
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}

	h := &handler{
		svc:           svc,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		validate:      newValidator(),
		secureCookies: opts.SecureCookies,
		now:           opts.Now,
	}
	limiter := newIPRateLimiter(opts.LoginRatePerMinute, opts.LoginBurst)

	strict := Authenticate(svc, Strict, opts.Logger)
	optional := Authenticate(svc, Optional, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(opts.Metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limiter.Middleware).Post("/register", h.register)
		r.With(limiter.Middleware).Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.With(optional).Get("/status", h.status)

		r.Group(func(r chi.Router) {
			r.Use(strict)
			r.Post("/logout", h.logout)
			r.Get("/user", h.currentUser)
			r.Put("/user/role", h.changeRole)
			r.With(RequireRoles(auth.RoleBroker)).Get("/users/{id}", h.lookupUser)
		})
	})

	return &Router{Handler: r, limiter: limiter}
}
