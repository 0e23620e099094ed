package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notefinder/internal/handlers"
)

// Deps holds the handlers the router wires up. Handlers are constructed by
// the caller so the router stays free of pipeline dependencies.
type Deps struct {
	Retrieve http.Handler
	Ask      http.Handler
	Sync     http.Handler
	Health   http.Handler
}

// NewRouter creates the HTTP router.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/retrieve", deps.Retrieve)
		r.Method(http.MethodPost, "/ask", deps.Ask)
		r.Method(http.MethodPost, "/sync", deps.Sync)
		r.Method(http.MethodGet, "/health", deps.Health)
	})

	return r
}

// NewDeps builds the default handler set.
func NewDeps(
	retrieve *handlers.RetrieveHandler,
	ask *handlers.AskHandler,
	sync *handlers.SyncHandler,
	health *handlers.HealthHandler,
) *Deps {
	return &Deps{
		Retrieve: retrieve,
		Ask:      ask,
		Sync:     sync,
		Health:   health,
	}
}
