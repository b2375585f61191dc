package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "go-roi-inspector/internal/errors"
)

// FileStore keeps templates on the local filesystem.
type FileStore struct{}

// NewFileStore creates a local template store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

func (s *FileStore) ReadTemplate(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("template %s not found", ref), err)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open template %s", ref), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxTemplateSize+1))
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read template %s", ref), err)
	}
	if len(data) > MaxTemplateSize {
		return nil, apperrors.NewStorageError(fmt.Sprintf("template %s exceeds %d bytes", ref, MaxTemplateSize), nil)
	}
	return data, nil
}

// WriteTemplate replaces ref atomically through a temporary file in the same directory.
func (s *FileStore) WriteTemplate(ctx context.Context, ref string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(ref)
	tmp, err := os.CreateTemp(dir, ".template-*")
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create template in %s", dir), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStorageError(fmt.Sprintf("failed to write template %s", ref), err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write template %s", ref), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write template %s", ref), err)
	}
	if err := os.Rename(tmp.Name(), ref); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to replace template %s", ref), err)
	}
	return nil
}
