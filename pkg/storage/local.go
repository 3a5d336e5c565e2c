package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local filesystem storage rooted at basePath
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes the file under a timestamp+random name and returns its metadata
func (s *LocalStorage) Save(ctx context.Context, originalName string, r io.Reader) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := fmt.Sprintf("%s_%s%s",
		time.Now().Format("2006-01-02_15-04-05"),
		uuid.NewString()[:8],
		ext,
	)

	path := filepath.Join(s.basePath, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	// Make sure bytes hit disk before anything records the stored name.
	if err := f.Sync(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}

	return &StoredFile{Name: name, Size: size}, nil
}

// Open returns a reader for a stored file
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file
func (s *LocalStorage) Remove(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
