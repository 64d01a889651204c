package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options carries the router's cross-cutting dependencies.
type Options struct {
	Verify         middleware.TokenVerifier
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter assembles the chi router with the service middleware stack.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/carousels", func(r chi.Router) {
		r.Use(middleware.Auth(opts.Verify))
		r.Post("/", app.CarouselsCreate)
		r.Get("/{job_id}", app.CarouselStatus)
		r.Post("/{job_id}/publish", app.CarouselPublish)
		r.Get("/{job_id}/export", app.CarouselExport)
	})

	return r
}
