// Package account manages bank accounts and their aggregated balances.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Djoulzy/compta/pkg/db"
)

// Compte is a bank account. Nom holds the account number extracted from
// statement filenames, so it is unique.
type Compte struct {
	ID             string    `json:"id"`
	Nom            string    `json:"nom"`
	Description    string    `json:"description"`
	Label          string    `json:"label"`
	SoldeAnterieur float64   `json:"solde_anterieur"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CompteWithBalance is an account with its operation aggregates. The
// operation balance counts credits minus debits; the total adds the
// account's prior balance on top.
type CompteWithBalance struct {
	Compte
	NombreOperations int64   `json:"nombre_operations"`
	TotalDebits      float64 `json:"total_debits"`
	TotalCredits     float64 `json:"total_credits"`
	SoldeOperations  float64 `json:"solde_operations"`
	SoldeTotal       float64 `json:"solde_total"`
}

// Repository handles account persistence
type Repository struct {
	db     db.Querier
	logger *slog.Logger
}

// NewRepository creates an account repository
func NewRepository(querier db.Querier, logger *slog.Logger) *Repository {
	return &Repository{db: querier, logger: logger}
}

const balanceSelect = `
	SELECT c.id, c.nom, c.description, c.label, c.solde_anterieur,
	       c.created_at, c.updated_at,
	       COUNT(o.id) AS nombre_operations,
	       COALESCE(SUM(o.montant) FILTER (WHERE o.debit_credit = 'D'), 0) AS total_debits,
	       COALESCE(SUM(o.montant) FILTER (WHERE o.debit_credit = 'C'), 0) AS total_credits
	FROM comptes c
	LEFT JOIN operations o ON o.compte_id = c.id
`

func scanCompteWithBalance(row pgx.Row) (*CompteWithBalance, error) {
	var c CompteWithBalance
	err := row.Scan(&c.ID, &c.Nom, &c.Description, &c.Label, &c.SoldeAnterieur,
		&c.CreatedAt, &c.UpdatedAt,
		&c.NombreOperations, &c.TotalDebits, &c.TotalCredits)
	if err != nil {
		return nil, err
	}

	c.SoldeOperations = c.TotalCredits - c.TotalDebits
	c.SoldeTotal = c.SoldeAnterieur + c.SoldeOperations

	return &c, nil
}

// GetAll returns every account with its balances, ordered by name
func (r *Repository) GetAll(ctx context.Context) ([]CompteWithBalance, error) {
	rows, err := r.db.Query(ctx, balanceSelect+`
		GROUP BY c.id
		ORDER BY c.nom
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	comptes := make([]CompteWithBalance, 0)
	for rows.Next() {
		c, err := scanCompteWithBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		comptes = append(comptes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	return comptes, nil
}

// GetByID returns an account with its balances, or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id string) (*CompteWithBalance, error) {
	row := r.db.QueryRow(ctx, balanceSelect+`
		WHERE c.id = $1
		GROUP BY c.id
	`, id)

	c, err := scanCompteWithBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return c, nil
}

// GetByNom returns an account by its unique name, or nil when it does not exist
func (r *Repository) GetByNom(ctx context.Context, nom string) (*Compte, error) {
	var c Compte
	err := r.db.QueryRow(ctx, `
		SELECT id, nom, description, label, solde_anterieur, created_at, updated_at
		FROM comptes
		WHERE nom = $1
	`, nom).Scan(&c.ID, &c.Nom, &c.Description, &c.Label, &c.SoldeAnterieur, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by name: %w", err)
	}

	return &c, nil
}

// Create inserts an account and returns it with its generated id
func (r *Repository) Create(ctx context.Context, nom, description, label string, soldeAnterieur float64) (*Compte, error) {
	var c Compte
	err := r.db.QueryRow(ctx, `
		INSERT INTO comptes (nom, description, label, solde_anterieur)
		VALUES ($1, $2, $3, $4)
		RETURNING id, nom, description, label, solde_anterieur, created_at, updated_at
	`, nom, description, label, soldeAnterieur).
		Scan(&c.ID, &c.Nom, &c.Description, &c.Label, &c.SoldeAnterieur, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &c, nil
}

// Update rewrites an account's editable fields; returns false when the id is unknown
func (r *Repository) Update(ctx context.Context, id, nom, description, label string, soldeAnterieur float64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE comptes
		SET nom = $1, description = $2, label = $3, solde_anterieur = $4, updated_at = NOW()
		WHERE id = $5
	`, nom, description, label, soldeAnterieur, id)
	if err != nil {
		return false, fmt.Errorf("failed to update account: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes an account and, through the cascade, its operations;
// returns false when the id is unknown
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM comptes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
