// Package filex holds the file-system primitives the secure stores rely on:
// write-temp-then-rename, hiding files from casual discovery and overwriting
// sensitive artifacts before removal.
package filex

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/google/uuid"
)

// EnsureDir creates dir (and parents) with owner-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return wrapPerm(fmt.Errorf("mkdir %s: %w", dir, err))
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path, so readers see either the old or the new content. Permission failures
// wrap common.ErrPermission.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return wrapPerm(fmt.Errorf("create temp file: %w", err))
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return wrapPerm(fmt.Errorf("write temp file: %w", err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	// hidden files cannot be replaced on windows
	_ = Unhide(path)

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return wrapPerm(fmt.Errorf("rename %s: %w", path, err))
	}
	return nil
}

// CopyFileAtomic copies src over dst using WriteFileAtomic.
func CopyFileAtomic(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return WriteFileAtomic(dst, data, 0o600)
}

// SecureDelete overwrites the file with random bytes of the same length,
// syncs, and removes it. A missing file is not an error.
func SecureDelete(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	_ = Unhide(path)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return wrapPerm(fmt.Errorf("open for wipe: %w", err))
	}

	noise := make([]byte, info.Size())
	if _, err := rand.Read(noise); err != nil {
		f.Close()
		return err
	}
	if _, err := f.WriteAt(noise, 0); err != nil {
		f.Close()
		return fmt.Errorf("overwrite %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func wrapPerm(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", common.ErrPermission, err)
	}
	return err
}
