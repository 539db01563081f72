package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
)

// FileBackend maps blob keys to files below Root.
type FileBackend struct {
	Root string
}

// NewFileBackend returns a FileBackend rooted at root. The directory is
// created on the first upload.
//
// Example:
//
//	be := storage.NewFileBackend("/srv/printkeeper")
//	err := be.UploadText(ctx, "system/users.json", blob)
func NewFileBackend(root string) *FileBackend {
	return &FileBackend{Root: root}
}

func (f *FileBackend) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: blob key %q escapes storage root", common.ErrStorage, key)
	}
	return filepath.Join(f.Root, clean), nil
}

// DownloadText reads the file for key. Keys that would leave Root are
// rejected with common.ErrStorage.
func (f *FileBackend) DownloadText(_ context.Context, key string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("blob %s: %w", key, common.ErrorNotFound)
		}
		return "", fmt.Errorf("%w: read %s: %v", common.ErrStorage, key, err)
	}
	return string(b), nil
}

// UploadText replaces the file for key atomically.
func (f *FileBackend) UploadText(_ context.Context, key, text string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(p, []byte(text), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", common.ErrStorage, key, err)
	}
	return nil
}
