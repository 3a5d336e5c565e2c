package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/Djoulzy/compta/internal/web"
)

// uploads are heavy (full pipeline run per file), keep them throttled
const (
	uploadRateLimit = rate.Limit(1)
	uploadBurst     = 5
)

// NewRouter wires the HTTP routes
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	}).Handler)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		web.Error(w, web.MethodNotAllowed())
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		web.Error(w, web.NotFound("Ressource non trouvée"))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/upload", web.RateLimit(uploadRateLimit, uploadBurst, deps.ImportHandler.Upload))

	r.Route("/imports", func(r chi.Router) {
		r.Get("/", deps.ImportHandler.List)
		r.Get("/operations/{id}", deps.ImportHandler.Operations)
		r.Get("/{id}", deps.ImportHandler.Get)
		r.Delete("/{id}", deps.ImportHandler.Delete)
	})

	r.Route("/comptes", func(r chi.Router) {
		r.Get("/", deps.AccountHandler.List)
		r.Post("/", deps.AccountHandler.Create)
		r.Get("/{id}", deps.AccountHandler.Get)
		r.Put("/{id}", deps.AccountHandler.Update)
		r.Delete("/{id}", deps.AccountHandler.Delete)
	})

	r.Route("/operations", func(r chi.Router) {
		r.Get("/", deps.OperationHandler.List)
		r.Post("/", deps.OperationHandler.Create)
		r.Get("/balance", deps.OperationHandler.Balance)
		r.Get("/export", deps.OperationHandler.Export)
		r.Put("/tags/{id}", deps.OperationHandler.UpdateTags)
		r.Get("/{id}", deps.OperationHandler.Get)
		r.Delete("/{id}", deps.OperationHandler.Delete)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", deps.TagHandler.List)
		r.Post("/", deps.TagHandler.Create)
		r.Get("/{id}", deps.TagHandler.Get)
		r.Put("/{id}", deps.TagHandler.Update)
		r.Delete("/{id}", deps.TagHandler.Delete)
	})

	return r
}
