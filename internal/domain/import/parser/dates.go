// Package parser turns raw CSV cells into validated operation fields.
// All error messages are per-row French strings since they end up in the
// import report shown to the user.
package parser

import (
	"fmt"
	"strings"
	"time"
)

// ParseDate parses a required date cell with the layouts in order and
// returns the canonical YYYY-MM-DD form.
func ParseDate(value string, layouts []string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), nil
		}
	}

	return "", fmt.Errorf("unparseable date %q", value)
}

// ParseOptionalDate parses a date cell that may be empty. An empty cell
// yields nil; a non-empty cell that parses with none of the layouts is
// an error.
func ParseOptionalDate(value string, layouts []string) (*string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	parsed, err := ParseDate(value, layouts)
	if err != nil {
		return nil, err
	}

	return &parsed, nil
}
