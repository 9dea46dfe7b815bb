package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"insightbot/internal/http/handlers"
	"insightbot/internal/infra"
	"insightbot/internal/middleware"
)

// NewRouter mounts the webhook endpoints.
func NewRouter(app *handlers.App, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/slack", func(r chi.Router) {
		r.Post("/command", app.HandleCommand)
		r.Post("/interactivity", app.HandleInteractivity)
	})

	r.Post("/dispatch/run", app.HandleDispatch)

	return r
}
