// Package handler exposes the import endpoints: the CSV upload itself
// and the history of past imports.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Djoulzy/compta/internal/domain/import/dialect"
	importrepo "github.com/Djoulzy/compta/internal/domain/import/repository"
	"github.com/Djoulzy/compta/internal/domain/import/service"
	"github.com/Djoulzy/compta/internal/domain/operation"
	"github.com/Djoulzy/compta/internal/web"
)

// maxUploadSize caps statement uploads at 32 MiB
const maxUploadSize = 32 << 20

// OperationLister returns the operations belonging to one import
type OperationLister interface {
	GetAll(ctx context.Context, f operation.Filters) ([]operation.Operation, error)
}

// Handler serves the import endpoints
type Handler struct {
	pipeline   *service.Pipeline
	repo       *importrepo.Repository
	operations OperationLister
	logger     *slog.Logger
}

// NewHandler creates an import handler
func NewHandler(pipeline *service.Pipeline, repo *importrepo.Repository, operations OperationLister, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, repo: repo, operations: operations, logger: logger}
}

// Upload handles POST /upload. The statement file travels as the "file"
// part of a multipart form.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		web.Error(w, web.Validation("Aucun fichier uploadé"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		web.Error(w, web.Validation("Aucun fichier uploadé"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	stats, err := h.pipeline.Run(r.Context(), header.Filename, data)
	if err != nil {
		h.writeUploadError(w, header.Filename, err)
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (h *Handler) writeUploadError(w http.ResponseWriter, filename string, err error) {
	var dup *service.DuplicateError

	switch {
	case errors.Is(err, service.ErrNotCSV):
		web.Error(w, web.UnsupportedMedia("Le fichier doit être au format CSV"))
	case errors.Is(err, service.ErrEmptyFile):
		web.Error(w, web.UnsupportedMedia("Le fichier est vide"))
	case errors.Is(err, dialect.ErrUnknownFormat):
		web.Error(w, web.Validation("Format de fichier CSV non reconnu"))
	case errors.As(err, &dup):
		web.Error(w, web.Duplicate("Ce fichier a déjà été importé", map[string]any{
			"import_existant": map[string]any{
				"id":                dup.Existing.ID,
				"nom_fichier":       dup.Existing.NomFichierOriginal,
				"date_import":       dup.Existing.DateImport,
				"nombre_operations": dup.Existing.NombreOperations,
			},
		}))
	default:
		h.logger.Error("import failed",
			slog.String("fichier", filename), slog.Any("error", err))
		web.Error(w, err)
	}
}

// List handles GET /imports
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	imports, err := h.repo.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list imports", slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusOK, imports)
}

// Get handles GET /imports/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	imp, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get import", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if imp == nil {
		web.Error(w, web.NotFound("Import non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, imp)
}

// Operations handles GET /imports/operations/{id}, listing the
// operations inserted by one import.
func (h *Handler) Operations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	imp, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get import", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if imp == nil {
		web.Error(w, web.NotFound("Import non trouvé"))
		return
	}

	operations, err := h.operations.GetAll(r.Context(), operation.Filters{ImportID: id})
	if err != nil {
		h.logger.Error("failed to list import operations", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{
		"import":     imp,
		"operations": operations,
	})
}

// Delete handles DELETE /imports/{id}, removing the import and every
// operation it inserted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, found, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete import", slog.String("id", id), slog.Any("error", err))
		web.Error(w, err)
		return
	}
	if !found {
		web.Error(w, web.NotFound("Import non trouvé"))
		return
	}

	web.JSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"operations_supprimees": deleted,
	})
}
