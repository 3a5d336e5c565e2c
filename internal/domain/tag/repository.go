// Package tag stores classification rules and applies them to operation
// labels. A rule is a key plus a comma-separated list of search tokens;
// matching operations carry a snapshot of the rule in their tags column.
package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Djoulzy/compta/pkg/db"
)

// Tag is a classification rule
type Tag struct {
	ID        string    `json:"id"`
	Cle       string    `json:"cle"`
	Valeur    string    `json:"valeur"`
	CreatedAt time.Time `json:"created_at"`
}

// AppliedTag is the snapshot written into an operation's tags column when
// a rule matches. Valeur is the rule's full token list at match time.
type AppliedTag struct {
	Cle    string `json:"cle"`
	Valeur string `json:"valeur"`
}

// Repository handles tag persistence
type Repository struct {
	db     db.Querier
	logger *slog.Logger
}

// NewRepository creates a tag repository
func NewRepository(querier db.Querier, logger *slog.Logger) *Repository {
	return &Repository{db: querier, logger: logger}
}

// GetAll returns every rule ordered by key
func (r *Repository) GetAll(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cle, valeur, created_at
		FROM tags
		ORDER BY cle
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Cle, &t.Valeur, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return tags, nil
}

// GetByID returns a single rule, or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id string) (*Tag, error) {
	var t Tag
	err := r.db.QueryRow(ctx, `
		SELECT id, cle, valeur, created_at
		FROM tags
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Cle, &t.Valeur, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}

	return &t, nil
}

// Create inserts a rule and returns it with its generated id
func (r *Repository) Create(ctx context.Context, cle, valeur string) (*Tag, error) {
	var t Tag
	err := r.db.QueryRow(ctx, `
		INSERT INTO tags (cle, valeur)
		VALUES ($1, $2)
		RETURNING id, cle, valeur, created_at
	`, cle, valeur).Scan(&t.ID, &t.Cle, &t.Valeur, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	return &t, nil
}

// Update rewrites a rule's key and tokens; returns false when the id is unknown
func (r *Repository) Update(ctx context.Context, id, cle, valeur string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tags
		SET cle = $1, valeur = $2
		WHERE id = $3
	`, cle, valeur, id)
	if err != nil {
		return false, fmt.Errorf("failed to update tag: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes a rule; returns false when the id is unknown
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
