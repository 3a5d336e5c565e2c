package operation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Djoulzy/compta/internal/domain/account"
	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/internal/web"
)

// AccountStore is the account lookup the service needs
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*account.CompteWithBalance, error)
}

// TagStore provides the rule set for tagging new operations
type TagStore interface {
	GetAll(ctx context.Context) ([]tag.Tag, error)
}

// CreateInput carries a manually entered operation
type CreateInput struct {
	CompteID                    string  `json:"compte_id"`
	DateOperation               string  `json:"date_operation"`
	DateValeur                  string  `json:"date_valeur"`
	Libelle                     string  `json:"libelle"`
	Montant                     float64 `json:"montant"`
	DebitCredit                 string  `json:"debit_credit"`
	CB                          bool    `json:"cb"`
	Reference                   string  `json:"reference"`
	InformationsComplementaires string  `json:"informations_complementaires"`
	TypeOperation               string  `json:"type_operation"`
}

// Service validates and tags manually created operations
type Service struct {
	repo     *Repository
	accounts AccountStore
	tags     TagStore
	logger   *slog.Logger
}

// NewService creates an operation service
func NewService(repo *Repository, accounts AccountStore, tags TagStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, tags: tags, logger: logger}
}

// normalizeDate accepts YYYY-MM-DD or DD/MM/YYYY and returns the
// canonical YYYY-MM-DD form.
func normalizeDate(value string) (string, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", value)
}

// Create validates the input, applies the current tag rules and inserts
// the operation.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Operation, error) {
	if strings.TrimSpace(in.CompteID) == "" {
		return nil, web.Validation("Le champ 'compte_id' est requis")
	}
	if strings.TrimSpace(in.DateOperation) == "" {
		return nil, web.Validation("Le champ 'date_operation' est requis")
	}
	if strings.TrimSpace(in.Libelle) == "" {
		return nil, web.Validation("Le champ 'libelle' est requis")
	}
	if in.Montant <= 0 {
		return nil, web.Validation("Le champ 'montant' doit être un nombre positif")
	}
	if in.DebitCredit != "D" && in.DebitCredit != "C" {
		return nil, web.Validation("Le champ 'debit_credit' doit être 'D' ou 'C'")
	}

	dateOperation, err := normalizeDate(in.DateOperation)
	if err != nil {
		return nil, web.Validation("Le champ 'date_operation' est invalide")
	}

	var dateValeur *string
	if strings.TrimSpace(in.DateValeur) != "" {
		normalized, err := normalizeDate(in.DateValeur)
		if err != nil {
			return nil, web.Validation("Le champ 'date_valeur' est invalide")
		}
		dateValeur = &normalized
	}

	compte, err := s.accounts.GetByID(ctx, in.CompteID)
	if err != nil {
		return nil, err
	}
	if compte == nil {
		return nil, web.NotFound("Compte non trouvé")
	}

	rules, err := s.tags.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	op := &Operation{
		CompteID:                    in.CompteID,
		CompteNom:                   compte.Nom,
		DateOperation:               dateOperation,
		DateValeur:                  dateValeur,
		Libelle:                     in.Libelle,
		Montant:                     in.Montant,
		DebitCredit:                 in.DebitCredit,
		CB:                          in.CB,
		Tags:                        tag.Apply(rules, in.Libelle, in.InformationsComplementaires),
		Reference:                   in.Reference,
		InformationsComplementaires: in.InformationsComplementaires,
		TypeOperation:               in.TypeOperation,
	}

	return s.repo.Create(ctx, op)
}
