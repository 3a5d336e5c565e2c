// Package repository persists import records. The file hash unique
// index makes it the duplicate guard for uploads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Djoulzy/compta/pkg/db"
)

// Import statuses. An import is in_progress while rows are being
// inserted and reaches a terminal status exactly once.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrDuplicateHash is returned when an import with the same file hash
// already exists.
var ErrDuplicateHash = errors.New("file hash already imported")

// Import is one upload of a statement file
type Import struct {
	ID                 string    `json:"id"`
	NomFichier         string    `json:"nom_fichier"`
	NomFichierOriginal string    `json:"nom_fichier_original"`
	TailleFichier      int64     `json:"taille_fichier"`
	HashFichier        string    `json:"hash_fichier"`
	Statut             string    `json:"statut"`
	NombreOperations   int       `json:"nombre_operations"`
	NombreErreurs      int       `json:"nombre_erreurs"`
	DateImport         time.Time `json:"date_import"`
}

// Summary is an import with live counts over its remaining operations
type Summary struct {
	Import
	OperationsActuelles    int64 `json:"operations_actuelles"`
	NombreComptesConcernes int64 `json:"nombre_comptes_concernes"`
}

// Repository handles import persistence
type Repository struct {
	db     db.Querier
	logger *slog.Logger
}

// NewRepository creates an import repository
func NewRepository(querier db.Querier, logger *slog.Logger) *Repository {
	return &Repository{db: querier, logger: logger}
}

// Create inserts an import in the in_progress state. A hash collision
// with an existing import yields ErrDuplicateHash.
func (r *Repository) Create(ctx context.Context, nomFichier, nomFichierOriginal string, tailleFichier int64, hashFichier string) (*Import, error) {
	var imp Import
	err := r.db.QueryRow(ctx, `
		INSERT INTO imports (nom_fichier, nom_fichier_original, taille_fichier, hash_fichier, statut)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, nom_fichier, nom_fichier_original, taille_fichier, hash_fichier,
		          statut, nombre_operations, nombre_erreurs, created_at
	`, nomFichier, nomFichierOriginal, tailleFichier, hashFichier, StatusInProgress).
		Scan(&imp.ID, &imp.NomFichier, &imp.NomFichierOriginal, &imp.TailleFichier, &imp.HashFichier,
			&imp.Statut, &imp.NombreOperations, &imp.NombreErreurs, &imp.DateImport)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateHash
		}
		return nil, fmt.Errorf("failed to create import: %w", err)
	}

	return &imp, nil
}

// FindByHash returns the import with this file hash, or nil
func (r *Repository) FindByHash(ctx context.Context, hash string) (*Import, error) {
	var imp Import
	err := r.db.QueryRow(ctx, `
		SELECT id, nom_fichier, nom_fichier_original, taille_fichier, hash_fichier,
		       statut, nombre_operations, nombre_erreurs, created_at
		FROM imports
		WHERE hash_fichier = $1
	`, hash).Scan(&imp.ID, &imp.NomFichier, &imp.NomFichierOriginal, &imp.TailleFichier, &imp.HashFichier,
		&imp.Statut, &imp.NombreOperations, &imp.NombreErreurs, &imp.DateImport)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find import by hash: %w", err)
	}

	return &imp, nil
}

// UpdateStats records the outcome of an import run
func (r *Repository) UpdateStats(ctx context.Context, id, statut string, nombreOperations, nombreErreurs int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE imports
		SET statut = $1, nombre_operations = $2, nombre_erreurs = $3
		WHERE id = $4
	`, statut, nombreOperations, nombreErreurs, id)
	if err != nil {
		return fmt.Errorf("failed to update import stats: %w", err)
	}

	return nil
}

const summarySelect = `
	SELECT i.id, i.nom_fichier, i.nom_fichier_original, i.taille_fichier, i.hash_fichier,
	       i.statut, i.nombre_operations, i.nombre_erreurs, i.created_at,
	       COUNT(o.id) AS operations_actuelles,
	       COUNT(DISTINCT o.compte_id) AS nombre_comptes_concernes
	FROM imports i
	LEFT JOIN operations o ON o.import_id = i.id
`

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	err := row.Scan(&s.ID, &s.NomFichier, &s.NomFichierOriginal, &s.TailleFichier, &s.HashFichier,
		&s.Statut, &s.NombreOperations, &s.NombreErreurs, &s.DateImport,
		&s.OperationsActuelles, &s.NombreComptesConcernes)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAll returns every import, newest first, with live operation counts
func (r *Repository) GetAll(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.Query(ctx, summarySelect+`
		GROUP BY i.id
		ORDER BY i.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	imports := make([]Summary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read imports: %w", err)
	}

	return imports, nil
}

// GetByID returns one import with live counts, or nil
func (r *Repository) GetByID(ctx context.Context, id string) (*Summary, error) {
	row := r.db.QueryRow(ctx, summarySelect+`
		WHERE i.id = $1
		GROUP BY i.id
	`, id)

	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	return s, nil
}

// Delete removes an import and its operations in one transaction and
// reports how many operations went with it. found is false when the id
// is unknown.
func (r *Repository) Delete(ctx context.Context, id string) (deletedOperations int64, found bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ops, err := tx.Exec(ctx, `DELETE FROM operations WHERE import_id = $1`, id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to delete import operations: %w", err)
	}

	imp, err := tx.Exec(ctx, `DELETE FROM imports WHERE id = $1`, id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to delete import: %w", err)
	}
	if imp.RowsAffected() == 0 {
		return 0, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit delete: %w", err)
	}

	return ops.RowsAffected(), true, nil
}
