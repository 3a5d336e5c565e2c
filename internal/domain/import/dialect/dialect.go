// Package dialect recognizes the two supported bank CSV layouts from
// their header line and configures a reader for the matching one.
package dialect

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Kind identifies a CSV layout
type Kind string

const (
	// KindModern is the 13-column semicolon-separated bank export
	KindModern Kind = "modern"
	// KindLegacy is the 8-column comma-separated consolidated export
	KindLegacy Kind = "legacy"
)

// ErrUnknownFormat is returned when the header line matches no known layout
var ErrUnknownFormat = errors.New("unrecognized CSV header")

// Modern layout column positions
const (
	ModernColLibelle    = 2
	ModernColReference  = 3
	ModernColInfos      = 4
	ModernColTypeOp     = 5
	ModernColDebit      = 8
	ModernColCredit     = 9
	ModernColDateOp     = 10
	ModernColDateValeur = 11
)

// Legacy layout column positions
const (
	LegacyColFichier    = 0
	LegacyColCompte     = 1
	LegacyColDateOp     = 2
	LegacyColDateValeur = 3
	LegacyColLibelle    = 4
	LegacyColMontant    = 5
	LegacyColDirection  = 6
	LegacyColCB         = 7
)

// Descriptor describes one CSV layout: its separator, the exact header
// cells that identify it, and the date layouts to try in order.
type Descriptor struct {
	Kind        Kind
	Separator   rune
	Header      []string
	DateLayouts []string
}

var descriptors = []Descriptor{
	{
		Kind:      KindModern,
		Separator: ';',
		Header: []string{
			"Date de comptabilisation", "Libelle simplifie", "Libelle operation",
			"Reference", "Informations complementaires", "Type operation",
			"Categorie", "Sous categorie", "Debit", "Credit",
			"Date operation", "Date de valeur", "Pointage operation",
		},
		DateLayouts: []string{"02/01/2006", "2006-01-02"},
	},
	{
		Kind:      KindLegacy,
		Separator: ',',
		Header: []string{
			"Fichier", "Compte", "Date opération", "Date valeur",
			"Libellé", "Montant", "Débit/Crédit", "CB",
		},
		DateLayouts: []string{"2006-01-02", "02/01/2006"},
	},
}

// splitHeader parses a raw header line with the given separator and
// trims each cell.
func splitHeader(line string, separator rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = separator
	reader.LazyQuotes = true

	cells, err := reader.Read()
	if err != nil {
		return nil
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	return cells
}

// Detect matches a header line against the known layouts. A UTF-8 BOM
// on the first cell is ignored.
func Detect(headerLine string) (*Descriptor, error) {
	headerLine = strings.TrimPrefix(headerLine, "\xEF\xBB\xBF")

	for i := range descriptors {
		d := &descriptors[i]
		cells := splitHeader(headerLine, d.Separator)
		if len(cells) != len(d.Header) {
			continue
		}

		match := true
		for j, expected := range d.Header {
			if cells[j] != expected {
				match = false
				break
			}
		}
		if match {
			return d, nil
		}
	}

	return nil, ErrUnknownFormat
}

// NewReader configures a CSV reader for the layout. Rows with the wrong
// column count are let through so they can be reported per line.
func NewReader(r io.Reader, d *Descriptor) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = d.Separator
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	return reader
}
