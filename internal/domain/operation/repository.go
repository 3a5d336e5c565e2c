// Package operation manages bank operations: listing with filters,
// balance aggregation and the tag snapshots attached to each row.
package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/pkg/db"
)

// Operation is a single bank movement. Dates travel as YYYY-MM-DD
// strings; the amount is always positive, the direction lives in
// DebitCredit ('D' or 'C').
type Operation struct {
	ID                          string           `json:"id"`
	Fichier                     string           `json:"fichier"`
	ImportID                    *string          `json:"import_id"`
	CompteID                    string           `json:"compte_id"`
	CompteNom                   string           `json:"compte_nom"`
	DateOperation               string           `json:"date_operation"`
	DateValeur                  *string          `json:"date_valeur"`
	Libelle                     string           `json:"libelle"`
	Montant                     float64          `json:"montant"`
	DebitCredit                 string           `json:"debit_credit"`
	CB                          bool             `json:"cb"`
	Tags                        []tag.AppliedTag `json:"tags"`
	Reference                   string           `json:"reference"`
	InformationsComplementaires string           `json:"informations_complementaires"`
	TypeOperation               string           `json:"type_operation"`
	CreatedAt                   time.Time        `json:"created_at"`
}

// Filters narrows operation listings and balance aggregates
type Filters struct {
	CompteID    string
	ImportID    string
	DebitCredit string
	CB          *bool
	DateDebut   string
	DateFin     string
	Mois        int
	Annee       int
	Recherche   string
	Tags        []string
	Tri         string
}

// HasBeyondAccount reports whether any filter other than the account
// (and the sort order) is active. The prior balance is only meaningful
// when the listing covers an account's full history.
func (f Filters) HasBeyondAccount() bool {
	return f.ImportID != "" || f.DebitCredit != "" || f.CB != nil ||
		f.DateDebut != "" || f.DateFin != "" ||
		f.Mois != 0 || f.Annee != 0 ||
		f.Recherche != "" || len(f.Tags) > 0
}

// Balance is the aggregate over a filtered set of operations. The prior
// balance is folded in only when a single unfiltered account is
// selected, which SoldeAnterieurInclus reports.
type Balance struct {
	TotalDebits          float64 `json:"total_debits"`
	TotalCredits         float64 `json:"total_credits"`
	SoldeOperations      float64 `json:"solde_operations"`
	NombreOperations     int64   `json:"nombre_operations"`
	SoldeAnterieur       float64 `json:"solde_anterieur"`
	SoldeTotal           float64 `json:"solde_total"`
	SoldeAnterieurInclus bool    `json:"solde_anterieur_inclus"`
}

var sortColumns = map[string]string{
	"date_operation_asc":                "o.date_operation ASC",
	"date_operation_desc":               "o.date_operation DESC",
	"date_valeur_asc":                   "o.date_valeur ASC NULLS LAST",
	"date_valeur_desc":                  "o.date_valeur DESC NULLS LAST",
	"informations_complementaires_asc":  "o.informations_complementaires ASC NULLS LAST",
	"informations_complementaires_desc": "o.informations_complementaires DESC NULLS LAST",
}

// Repository handles operation persistence
type Repository struct {
	db     db.Querier
	logger *slog.Logger
}

// NewRepository creates an operation repository
func NewRepository(querier db.Querier, logger *slog.Logger) *Repository {
	return &Repository{db: querier, logger: logger}
}

const operationSelect = `
	SELECT o.id, o.fichier, o.import_id, o.compte_id, c.nom,
	       to_char(o.date_operation, 'YYYY-MM-DD'),
	       to_char(o.date_valeur, 'YYYY-MM-DD'),
	       o.libelle, o.montant, o.debit_credit, o.cb, o.tags,
	       COALESCE(o.reference, ''), COALESCE(o.informations_complementaires, ''),
	       COALESCE(o.type_operation, ''), o.created_at
	FROM operations o
	JOIN comptes c ON c.id = o.compte_id
`

func scanOperation(row pgx.Row) (*Operation, error) {
	var o Operation
	err := row.Scan(&o.ID, &o.Fichier, &o.ImportID, &o.CompteID, &o.CompteNom,
		&o.DateOperation, &o.DateValeur,
		&o.Libelle, &o.Montant, &o.DebitCredit, &o.CB, &o.Tags,
		&o.Reference, &o.InformationsComplementaires, &o.TypeOperation,
		&o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if o.Tags == nil {
		o.Tags = make([]tag.AppliedTag, 0)
	}

	return &o, nil
}

// buildWhere translates the filters into SQL conditions and arguments
func buildWhere(f Filters) (string, []any) {
	conditions := make([]string, 0)
	args := make([]any, 0)

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.CompteID != "" {
		add("o.compte_id = $%d", f.CompteID)
	}
	if f.ImportID != "" {
		add("o.import_id = $%d", f.ImportID)
	}
	if f.DebitCredit != "" {
		add("o.debit_credit = $%d", f.DebitCredit)
	}
	if f.CB != nil {
		add("o.cb = $%d", *f.CB)
	}
	if f.DateDebut != "" {
		add("o.date_operation >= $%d", f.DateDebut)
	}
	if f.DateFin != "" {
		add("o.date_operation <= $%d", f.DateFin)
	}
	if f.Mois != 0 {
		add("EXTRACT(MONTH FROM o.date_operation) = $%d", f.Mois)
	}
	if f.Annee != 0 {
		add("EXTRACT(YEAR FROM o.date_operation) = $%d", f.Annee)
	}
	if f.Recherche != "" {
		args = append(args, "%"+f.Recherche+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(o.libelle ILIKE $%d OR o.informations_complementaires ILIKE $%d)",
			len(args), len(args)))
	}
	if len(f.Tags) > 0 {
		tagConditions := make([]string, 0, len(f.Tags))
		for _, cle := range f.Tags {
			needle, _ := json.Marshal([]map[string]string{{"cle": cle}})
			args = append(args, string(needle))
			tagConditions = append(tagConditions, fmt.Sprintf("o.tags @> $%d::jsonb", len(args)))
		}
		conditions = append(conditions, "("+strings.Join(tagConditions, " OR ")+")")
	}

	if len(conditions) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// GetAll returns the operations matching the filters, in the requested order
func (r *Repository) GetAll(ctx context.Context, f Filters) ([]Operation, error) {
	where, args := buildWhere(f)

	orderBy, ok := sortColumns[f.Tri]
	if !ok {
		orderBy = "o.date_operation DESC"
	}

	rows, err := r.db.Query(ctx, operationSelect+where+" ORDER BY "+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	operations := make([]Operation, 0)
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}

	return operations, nil
}

// GetByID returns a single operation, or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id string) (*Operation, error) {
	row := r.db.QueryRow(ctx, operationSelect+" WHERE o.id = $1", id)

	o, err := scanOperation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return o, nil
}

// GetBalance aggregates debits and credits over the filtered operations.
// The account's prior balance is included only when exactly one account
// is selected with no further filters.
func (r *Repository) GetBalance(ctx context.Context, f Filters) (*Balance, error) {
	where, args := buildWhere(f)

	var b Balance
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(o.id),
		       COALESCE(SUM(o.montant) FILTER (WHERE o.debit_credit = 'D'), 0),
		       COALESCE(SUM(o.montant) FILTER (WHERE o.debit_credit = 'C'), 0)
		FROM operations o
	`+where, args...).Scan(&b.NombreOperations, &b.TotalDebits, &b.TotalCredits)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate balance: %w", err)
	}

	b.SoldeOperations = b.TotalCredits - b.TotalDebits

	if f.CompteID != "" && !f.HasBeyondAccount() {
		err := r.db.QueryRow(ctx, `
			SELECT solde_anterieur FROM comptes WHERE id = $1
		`, f.CompteID).Scan(&b.SoldeAnterieur)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get prior balance: %w", err)
		}
		b.SoldeAnterieurInclus = true
	}

	b.SoldeTotal = b.SoldeAnterieur + b.SoldeOperations

	return &b, nil
}

// Create inserts an operation and returns its generated id and timestamp
func (r *Repository) Create(ctx context.Context, o *Operation) (*Operation, error) {
	tagsJSON, err := json.Marshal(o.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO operations (fichier, import_id, compte_id, date_operation, date_valeur,
		                        libelle, montant, debit_credit, cb, tags,
		                        reference, informations_complementaires, type_operation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13)
		RETURNING id, created_at
	`, o.Fichier, o.ImportID, o.CompteID, o.DateOperation, o.DateValeur,
		o.Libelle, o.Montant, o.DebitCredit, o.CB, string(tagsJSON),
		o.Reference, o.InformationsComplementaires, o.TypeOperation).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	return o, nil
}

// UpdateTags overwrites an operation's tag snapshot; returns false when
// the id is unknown
func (r *Repository) UpdateTags(ctx context.Context, operationID string, tags []tag.AppliedTag) (bool, error) {
	if tags == nil {
		tags = make([]tag.AppliedTag, 0)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("failed to encode tags: %w", err)
	}

	ct, err := r.db.Exec(ctx, `
		UPDATE operations
		SET tags = $1::jsonb, updated_at = NOW()
		WHERE id = $2
	`, string(tagsJSON), operationID)
	if err != nil {
		return false, fmt.Errorf("failed to update operation tags: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// Delete removes an operation; returns false when the id is unknown
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete operation: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ListForRetag returns the label slices of every operation for a
// reclassification sweep.
func (r *Repository) ListForRetag(ctx context.Context) ([]tag.RetagTarget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, libelle, COALESCE(informations_complementaires, '')
		FROM operations
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations for retag: %w", err)
	}
	defer rows.Close()

	targets := make([]tag.RetagTarget, 0)
	for rows.Next() {
		var t tag.RetagTarget
		if err := rows.Scan(&t.ID, &t.Libelle, &t.InformationsComplementaires); err != nil {
			return nil, fmt.Errorf("failed to scan retag target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retag targets: %w", err)
	}

	return targets, nil
}
