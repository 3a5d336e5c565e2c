// Package handler exposes the tag rule CRUD endpoints. Every mutation
// triggers a full reclassification of stored operations.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/internal/web"
)

// Service is the tag service surface the handler needs
type Service interface {
	GetAll(ctx context.Context) ([]tag.Tag, error)
	GetByID(ctx context.Context, id string) (*tag.Tag, error)
	Create(ctx context.Context, cle, valeur string) (*tag.Tag, error)
	Update(ctx context.Context, id, cle, valeur string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Handler serves the tag endpoints
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a tag handler
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type tagRequest struct {
	Cle    string `json:"cle"`
	Valeur string `json:"valeur"`
}

func (r *tagRequest) validate() error {
	if strings.TrimSpace(r.Cle) == "" {
		return web.Validation("Le champ 'cle' est requis")
	}
	if strings.TrimSpace(r.Valeur) == "" {
		return web.Validation("Le champ 'valeur' est requis")
	}
	return nil
}

// List handles GET /tags
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list tags", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusOK, tags)
}

// Get handles GET /tags/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get tag", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if t == nil {
		web.Error(w, web.NotFound("Tag non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, t)
}

// Create handles POST /tags
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}
	if err := req.validate(); err != nil {
		web.Error(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), strings.TrimSpace(req.Cle), strings.TrimSpace(req.Valeur))
	if err != nil {
		h.logger.Error("failed to create tag", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusCreated, created)
}

// Update handles PUT /tags/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}
	if err := req.validate(); err != nil {
		web.Error(w, err)
		return
	}

	found, err := h.service.Update(r.Context(), id, strings.TrimSpace(req.Cle), strings.TrimSpace(req.Valeur))
	if err != nil {
		h.logger.Error("failed to update tag", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Tag non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /tags/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete tag", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Tag non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}
