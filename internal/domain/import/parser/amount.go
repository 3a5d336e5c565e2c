package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zero-equivalent cells the bank emits for the unused side of a row
func isZeroEquivalent(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "0", "0,00":
		return true
	}
	return false
}

// ParseAmount parses a French-formatted amount cell into its absolute
// value. The sign is carried by the debit/credit direction, never by the
// amount itself.
func ParseAmount(value string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")

	parsed, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", value)
	}

	result, _ := parsed.Abs().Float64()

	return result, nil
}

// ResolveDebitCredit picks the amount cell of a modern row. A non-zero
// debit wins over the credit; when both sides are zero-equivalent there
// is no amount to import.
func ResolveDebitCredit(debit, credit string) (amount string, direction string, ok bool) {
	if !isZeroEquivalent(debit) {
		return debit, "D", true
	}
	if !isZeroEquivalent(credit) {
		return credit, "C", true
	}

	return "", "", false
}

// NormalizeDirection maps a legacy direction cell onto 'D' or 'C'
func NormalizeDirection(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "débit", "debit", "d":
		return "D", nil
	case "crédit", "credit", "c":
		return "C", nil
	}

	return "", fmt.Errorf("unknown direction %q", value)
}
