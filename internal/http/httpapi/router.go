package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options carries router wiring that is not part of the handler container.
type Options struct {
	Pages           *handlers.Pages
	CountryLookup   middleware.CountryLookup
	DefaultLang     domain.Lang
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Lang(opts.DefaultLang, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/healthz", app.Health)
	r.Get("/favicon.ico", handlers.Favicon)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", app.AuthRegister)
		r.Post("/auth/login", app.AuthLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret))
			r.Get("/auth/me", app.AuthMe)
			r.Post("/generate", app.Generate)
			r.Route("/history", func(r chi.Router) {
				r.Get("/", app.HistoryList)
				r.Get("/{id}", app.HistoryGet)
				r.Delete("/{id}", app.HistoryDelete)
				r.Get("/{id}/photos.zip", app.HistoryPhotosZip)
			})
		})
	})

	if opts.Pages != nil {
		r.Get("/", opts.Pages.Index)
		r.Get("/olx", opts.Pages.Index)
		r.Get("/wb", opts.Pages.Index)
		r.Get("/ozon", opts.Pages.Index)
		r.Handle("/static/*", opts.Pages.Static())
	}

	return r
}
