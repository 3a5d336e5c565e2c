package parser

import (
	"fmt"
	"strings"

	"github.com/Djoulzy/compta/internal/domain/import/dialect"
)

// ErrorKind classifies a row rejection
type ErrorKind string

const (
	KindColumnCount      ErrorKind = "column_count"
	KindInvalidDate      ErrorKind = "invalid_date"
	KindInvalidNumber    ErrorKind = "invalid_number"
	KindInvalidDirection ErrorKind = "invalid_direction"
	KindNoAmount         ErrorKind = "no_amount"
)

// RowError is a per-row rejection. Line is the 1-based line number in
// the file, counting the header as line 1.
type RowError struct {
	Line   int
	Kind   ErrorKind
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Ligne %d: %s", e.Line, e.Reason)
}

// Row is a parsed CSV row, normalized and ready to insert. CompteNumero
// and CB are only set by the legacy layout; the modern layout takes both
// from the filename.
type Row struct {
	Fichier                     string
	CompteNumero                string
	DateOperation               string
	DateValeur                  *string
	Libelle                     string
	Montant                     float64
	DebitCredit                 string
	CB                          *bool
	Reference                   string
	InformationsComplementaires string
	TypeOperation               string
}

// ParseRow parses one data row according to the layout. Line numbering
// starts at 2 for the first data row. A row must carry as many columns
// as the header of its layout.
func ParseRow(d *dialect.Descriptor, record []string, line int) (*Row, *RowError) {
	if len(record) < len(d.Header) {
		return nil, &RowError{
			Line: line,
			Kind: KindColumnCount,
			Reason: fmt.Sprintf("Nombre de colonnes insuffisant (%d au lieu de %d)",
				len(record), len(d.Header)),
		}
	}

	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	if d.Kind == dialect.KindModern {
		return parseModernRow(d, record, line)
	}
	return parseLegacyRow(d, record, line)
}

func parseModernRow(d *dialect.Descriptor, record []string, line int) (*Row, *RowError) {
	amountCell, direction, ok := ResolveDebitCredit(record[dialect.ModernColDebit], record[dialect.ModernColCredit])
	if !ok {
		return nil, &RowError{
			Line:   line,
			Kind:   KindNoAmount,
			Reason: "Aucun montant valide trouvé dans Débit ou Crédit",
		}
	}

	montant, err := ParseAmount(amountCell)
	if err != nil {
		return nil, &RowError{
			Line:   line,
			Kind:   KindInvalidNumber,
			Reason: fmt.Sprintf("Montant invalide: '%s'", amountCell),
		}
	}

	dateOperation, err := ParseDate(record[dialect.ModernColDateOp], d.DateLayouts)
	if err != nil {
		return nil, &RowError{
			Line:   line,
			Kind:   KindInvalidDate,
			Reason: fmt.Sprintf("Date d'opération invalide: '%s'", record[dialect.ModernColDateOp]),
		}
	}

	dateValeur, err := ParseOptionalDate(record[dialect.ModernColDateValeur], d.DateLayouts)
	if err != nil {
		dateValeur = nil
	}

	return &Row{
		DateOperation:               dateOperation,
		DateValeur:                  dateValeur,
		Libelle:                     record[dialect.ModernColLibelle],
		Montant:                     montant,
		DebitCredit:                 direction,
		Reference:                   record[dialect.ModernColReference],
		InformationsComplementaires: record[dialect.ModernColInfos],
		TypeOperation:               record[dialect.ModernColTypeOp],
	}, nil
}

// truthy legacy CB cell values
func parseLegacyCB(value string) bool {
	switch strings.ToLower(value) {
	case "oui", "true", "1":
		return true
	}
	return false
}

func parseLegacyRow(d *dialect.Descriptor, record []string, line int) (*Row, *RowError) {
	direction, err := NormalizeDirection(record[dialect.LegacyColDirection])
	if err != nil {
		return nil, &RowError{
			Line:   line,
			Kind:   KindInvalidDirection,
			Reason: fmt.Sprintf("Sens débit/crédit invalide: '%s'", record[dialect.LegacyColDirection]),
		}
	}

	montant, err := ParseAmount(record[dialect.LegacyColMontant])
	if err != nil {
		return nil, &RowError{
			Line:   line,
			Kind:   KindInvalidNumber,
			Reason: fmt.Sprintf("Montant invalide: '%s'", record[dialect.LegacyColMontant]),
		}
	}

	dateOperation, err := ParseDate(record[dialect.LegacyColDateOp], d.DateLayouts)
	if err != nil {
		return nil, &RowError{
			Line:   line,
			Kind:   KindInvalidDate,
			Reason: fmt.Sprintf("Date d'opération invalide: '%s'", record[dialect.LegacyColDateOp]),
		}
	}

	dateValeur, err := ParseOptionalDate(record[dialect.LegacyColDateValeur], d.DateLayouts)
	if err != nil {
		dateValeur = nil
	}

	cb := parseLegacyCB(record[dialect.LegacyColCB])

	return &Row{
		Fichier:       record[dialect.LegacyColFichier],
		CompteNumero:  record[dialect.LegacyColCompte],
		DateOperation: dateOperation,
		DateValeur:    dateValeur,
		Libelle:       record[dialect.LegacyColLibelle],
		Montant:       montant,
		DebitCredit:   direction,
		CB:            &cb,
	}, nil
}
