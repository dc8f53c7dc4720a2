package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/handler"
)

type RouteRegistrar interface {
	RegisterRoutes(router chi.Router)
}

// NewRouter mounts the customer routes at the root and the staff routes under
// /dashboard behind principal resolution.
func NewRouter(public, dashboard RouteRegistrar, resolver access.Resolver) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})

	public.RegisterRoutes(r)

	r.Route("/dashboard", func(dr chi.Router) {
		dr.Use(handler.RequirePrincipal(resolver))
		dashboard.RegisterRoutes(dr)
	})

	return r
}
