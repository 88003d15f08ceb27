// Package httpapi exposes the catalogue, ratings and recommendations over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palate/internal/usecase"
)

// Services are the use cases the API is a thin layer over.
type Services struct {
	Catalog     *usecase.Catalog
	Ratings     *usecase.RatingUseCase
	Recommender *usecase.Recommender
	Users       *usecase.UserUseCase
	Matcher     *usecase.TasteMatcher
}

type Options struct {
	// RateLimit is the number of API requests allowed per client IP per
	// minute. Zero disables limiting.
	RateLimit int
	// TasteScale is the scale assumed for taste input that does not state one.
	TasteScale int
	// FilterThreshold is the default cut-off for taste axis filters.
	FilterThreshold float64
}

type API struct {
	svc  Services
	opts Options
}

func New(svc Services, opts Options) *API {
	if opts.TasteScale == 0 {
		opts.TasteScale = 1
	}
	return &API{svc: svc, opts: opts}
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(correlationID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if a.opts.RateLimit > 0 {
			r.Use(httprate.Limit(a.opts.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded", nil)
				}),
			))
		}

		r.Route("/dishes", func(r chi.Router) {
			r.Post("/", a.createDish)
			r.Get("/", a.listDishes)
			r.Get("/{dishID}", a.getDish)
			r.Put("/{dishID}", a.updateDish)
			r.Delete("/{dishID}", a.deleteDish)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/", a.putUser)
			r.Get("/", a.getUser)
			r.Put("/taste", a.setTaste)
			r.Post("/ratings", a.rate)
			r.Get("/ratings", a.history)
			r.Get("/profile", a.profile)
			r.Get("/recommendations", a.recommend)
			r.Get("/taste-match/{dishID}", a.tasteMatch)
		})
	})

	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
