// Package handler exposes the account CRUD endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Djoulzy/compta/internal/domain/account"
	"github.com/Djoulzy/compta/internal/web"
)

// Handler serves the account endpoints
type Handler struct {
	repo   *account.Repository
	logger *slog.Logger
}

// NewHandler creates an account handler
func NewHandler(repo *account.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type compteRequest struct {
	Nom            string  `json:"nom"`
	Description    string  `json:"description"`
	Label          string  `json:"label"`
	SoldeAnterieur float64 `json:"solde_anterieur"`
}

// List handles GET /comptes
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	comptes, err := h.repo.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusOK, comptes)
}

// Get handles GET /comptes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	compte, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get account", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if compte == nil {
		web.Error(w, web.NotFound("Compte non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, compte)
}

// Create handles POST /comptes
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req compteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}
	if strings.TrimSpace(req.Nom) == "" {
		web.Error(w, web.Validation("Le champ 'nom' est requis"))
		return
	}

	created, err := h.repo.Create(r.Context(), strings.TrimSpace(req.Nom), req.Description, req.Label, req.SoldeAnterieur)
	if err != nil {
		h.logger.Error("failed to create account", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusCreated, created)
}

// Update handles PUT /comptes/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req compteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}
	if strings.TrimSpace(req.Nom) == "" {
		web.Error(w, web.Validation("Le champ 'nom' est requis"))
		return
	}

	found, err := h.repo.Update(r.Context(), id, strings.TrimSpace(req.Nom), req.Description, req.Label, req.SoldeAnterieur)
	if err != nil {
		h.logger.Error("failed to update account", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Compte non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /comptes/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete account", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Compte non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}
