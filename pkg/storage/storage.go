// Package storage persists uploaded statement files outside the database.
package storage

import (
	"context"
	"io"
)

// StoredFile describes a file after it has been written to durable storage
type StoredFile struct {
	// Name is the generated storage name, not the original upload name.
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Storage defines the interface for upload file operations
type Storage interface {
	// Save writes the file bytes under a generated unique name and
	// returns the stored name and size.
	Save(ctx context.Context, originalName string, r io.Reader) (*StoredFile, error)

	// Open returns a reader for a previously stored file
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes a stored file; missing files are not an error
	Remove(ctx context.Context, name string) error
}
