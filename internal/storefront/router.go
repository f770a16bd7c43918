package storefront

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
)

// NewRouter mounts the cart endpoints at the paths the drawer engine is
// configured with. limiter may be nil.
func NewRouter(h *Handler, routes config.Routes, limiter *RateLimiter, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Use(SessionMiddleware)

		r.Get("/", h.Page)
		r.Get(routes.Cart, h.Cart)
		r.Get("/cart/change", h.ChangeLink)
		r.Post(routes.Change, h.Change)
		r.Post(routes.Add, h.Add)
		r.Post(routes.Update, h.Update)
		r.Post("/cart/clear.js", h.Clear)
	})

	return otelhttp.NewHandler(r, "storefront")
}
