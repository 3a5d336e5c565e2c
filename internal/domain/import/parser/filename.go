package parser

import (
	"errors"
	"regexp"
)

// FileInfo is what a statement filename reveals: the account number the
// file belongs to and whether it is a card statement.
type FileInfo struct {
	CompteNumero string
	CB           bool
}

// ErrNoAccountNumber is returned when no account number can be read from
// a filename.
var ErrNoAccountNumber = errors.New("no account number in filename")

var (
	carteFilenameRe  = regexp.MustCompile(`(?i)carte_\d+_(\d+)_`)
	carteMarkerRe    = regexp.MustCompile(`(?i)carte`)
	leadingAccountRe = regexp.MustCompile(`^(\d+)`)
)

// ClassifyFilename extracts the account number from a statement
// filename. Card statement names look like carte_XXXX_NNNN_... where the
// second number is the account; other statements start with the account
// number itself.
func ClassifyFilename(name string) (*FileInfo, error) {
	if carteMarkerRe.MatchString(name) {
		match := carteFilenameRe.FindStringSubmatch(name)
		if match == nil {
			return nil, ErrNoAccountNumber
		}
		return &FileInfo{CompteNumero: match[1], CB: true}, nil
	}

	match := leadingAccountRe.FindStringSubmatch(name)
	if match == nil {
		return nil, ErrNoAccountNumber
	}

	return &FileInfo{CompteNumero: match[1], CB: false}, nil
}
