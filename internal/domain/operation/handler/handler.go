// Package handler exposes the operation endpoints: filtered listing,
// balance aggregation, CSV export, manual creation and tag edits.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/Djoulzy/compta/internal/domain/operation"
	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/internal/web"
)

// Handler serves the operation endpoints
type Handler struct {
	repo    *operation.Repository
	service *operation.Service
	logger  *slog.Logger
}

// NewHandler creates an operation handler
func NewHandler(repo *operation.Repository, service *operation.Service, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, service: service, logger: logger}
}

// parseFilters reads the listing filters from the query string
func parseFilters(r *http.Request) (operation.Filters, error) {
	q := r.URL.Query()
	var f operation.Filters

	if compteID := q.Get("compte_id"); compteID != "" {
		if _, err := uuid.Parse(compteID); err != nil {
			return f, web.Validation("Le paramètre 'compte_id' est invalide")
		}
		f.CompteID = compteID
	}

	if dc := q.Get("debit_credit"); dc != "" {
		if dc != "D" && dc != "C" {
			return f, web.Validation("Le paramètre 'debit_credit' doit être 'D' ou 'C'")
		}
		f.DebitCredit = dc
	}

	if cb := q.Get("cb"); cb != "" {
		value, err := strconv.ParseBool(cb)
		if err != nil {
			return f, web.Validation("Le paramètre 'cb' est invalide")
		}
		f.CB = &value
	}

	f.DateDebut = q.Get("date_debut")
	f.DateFin = q.Get("date_fin")

	if mois := q.Get("mois"); mois != "" {
		value, err := strconv.Atoi(mois)
		if err != nil || value < 1 || value > 12 {
			return f, web.Validation("Le paramètre 'mois' est invalide")
		}
		f.Mois = value
	}

	if annee := q.Get("annee"); annee != "" {
		value, err := strconv.Atoi(annee)
		if err != nil || value < 1900 {
			return f, web.Validation("Le paramètre 'annee' est invalide")
		}
		f.Annee = value
	}

	f.Recherche = q.Get("recherche")

	for _, t := range q["tag"] {
		if t = strings.TrimSpace(t); t != "" {
			f.Tags = append(f.Tags, t)
		}
	}

	f.Tri = q.Get("tri")

	return f, nil
}

// List handles GET /operations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		web.Error(w, err)
		return
	}

	operations, err := h.repo.GetAll(r.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list operations", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusOK, operations)
}

// Balance handles GET /operations/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		web.Error(w, err)
		return
	}

	balance, err := h.repo.GetBalance(r.Context(), filters)
	if err != nil {
		h.logger.Error("failed to compute balance", slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if balance == nil {
		web.Error(w, web.NotFound("Compte non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, balance)
}

// exportRow is the CSV shape of an operation
type exportRow struct {
	Compte                      string  `csv:"compte"`
	DateOperation               string  `csv:"date_operation"`
	DateValeur                  string  `csv:"date_valeur"`
	Libelle                     string  `csv:"libelle"`
	Montant                     float64 `csv:"montant"`
	DebitCredit                 string  `csv:"debit_credit"`
	CB                          bool    `csv:"cb"`
	Tags                        string  `csv:"tags"`
	Fichier                     string  `csv:"fichier"`
	Reference                   string  `csv:"reference"`
	InformationsComplementaires string  `csv:"informations_complementaires"`
	TypeOperation               string  `csv:"type_operation"`
}

// Export handles GET /operations/export, streaming the filtered
// operations as a CSV download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		web.Error(w, err)
		return
	}

	operations, err := h.repo.GetAll(r.Context(), filters)
	if err != nil {
		h.logger.Error("failed to export operations", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	rows := make([]exportRow, 0, len(operations))
	for _, o := range operations {
		cles := make([]string, 0, len(o.Tags))
		for _, t := range o.Tags {
			cles = append(cles, t.Cle)
		}

		dateValeur := ""
		if o.DateValeur != nil {
			dateValeur = *o.DateValeur
		}

		rows = append(rows, exportRow{
			Compte:                      o.CompteNom,
			DateOperation:               o.DateOperation,
			DateValeur:                  dateValeur,
			Libelle:                     o.Libelle,
			Montant:                     o.Montant,
			DebitCredit:                 o.DebitCredit,
			CB:                          o.CB,
			Tags:                        strings.Join(cles, ","),
			Fichier:                     o.Fichier,
			Reference:                   o.Reference,
			InformationsComplementaires: o.InformationsComplementaires,
			TypeOperation:               o.TypeOperation,
		})
	}

	filename := fmt.Sprintf("operations_export_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := gocsv.Marshal(rows, w); err != nil {
		h.logger.Error("failed to write CSV export", slog.Any("error", err))
	}
}

// Get handles GET /operations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	op, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get operation", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if op == nil {
		web.Error(w, web.NotFound("Opération non trouvée"))
		return
	}

	web.JSON(w, http.StatusOK, op)
}

// Create handles POST /operations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in operation.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}

	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		if web.From(err).Status == http.StatusInternalServerError {
			h.logger.Error("failed to create operation", slog.Any("error", err))
		}
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusCreated, created)
}

// UpdateTags handles PUT /operations/tags/{id}, overwriting the
// operation's tag snapshot.
func (h *Handler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Tags []tag.AppliedTag `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, web.Validation("Corps de requête JSON invalide"))
		return
	}

	found, err := h.repo.UpdateTags(r.Context(), id, req.Tags)
	if err != nil {
		h.logger.Error("failed to update operation tags", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Opération non trouvée"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /operations/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete operation", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Opération non trouvée"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{"success": true})
}
