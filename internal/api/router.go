package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/render"
)

// NewRouter builds the chi router serving every /gt endpoint plus a
// liveness probe, wired to the given catalog and renderer.
func NewRouter(cat *catalog.Catalog, renderer *render.Renderer, gridSize int, defaultColorRamp string, corsOrigins []string) http.Handler {
	s := &Server{
		Catalog:          cat,
		Renderer:         renderer,
		GridSize:         gridSize,
		DefaultColorRamp: defaultColorRamp,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/gt", func(r chi.Router) {
		r.Get("/colors", s.colorsHandler)
		r.Post("/breaks", s.breaksHandler)
		r.Post("/wo", s.overlayHandler)
		r.Post("/tile/{z}/{x}/{y}.png", s.tileHandler)
		r.Post("/histogram", s.histogramHandler)
		r.Post("/value", s.valueHandler)
		r.Post("/spark/value", s.sparkValueHandler)
	})

	return r
}
