package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
	"photovault/internal/model"
)

// FileSystemVault is the live media library. It stores photos and
// thumbnails as files in a directory structure:
//
//	<root>/
//	  photos/
//	    <fileName>
//	  thumbnails/
//	    thumb_<fileName>
//
// Every mutation goes through gallery.FileOps, so files are either fully
// written or absent.
type FileSystemVault struct {
	root          string
	photosDir     string
	thumbnailsDir string
	ops           gallery.FileOps
}

// NewFileSystemVault creates a new media library rooted at the given path.
func NewFileSystemVault(root string, ops gallery.FileOps) (*FileSystemVault, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving library root: %w", err)
	}
	v := &FileSystemVault{
		root:          root,
		photosDir:     filepath.Join(root, strings.TrimSuffix(model.PhotosPrefix, "/")),
		thumbnailsDir: filepath.Join(root, filepath.Dir(model.ThumbnailPrefix)),
		ops:           ops,
	}

	// Create directory structure
	for _, dir := range []string{v.photosDir, v.thumbnailsDir} {
		if err := ops.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}
	return v, nil
}

// Root returns the absolute library root.
func (v *FileSystemVault) Root() string {
	return v.root
}

func (v *FileSystemVault) PhotoPath(fileName string) string {
	return model.PhotoEntryName(fileName)
}

func (v *FileSystemVault) ThumbnailPath(fileName string) string {
	return model.ThumbnailEntryName(fileName)
}

// Abs resolves a library-relative path. Absolute paths and paths that
// climb out of the root are refused.
func (v *FileSystemVault) Abs(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("invalid library path %q", rel)
	}
	abs := filepath.Join(v.root, filepath.FromSlash(rel))
	if abs == v.root || !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("library path %q escapes the library root", rel)
	}
	return abs, nil
}

func (v *FileSystemVault) Exists(rel string) bool {
	abs, err := v.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Put writes r at rel and returns its checksum and size.
func (v *FileSystemVault) Put(rel string, r io.Reader) (string, int64, error) {
	abs, err := v.prepare(rel)
	if err != nil {
		return "", 0, err
	}
	return v.ops.AtomicWrite(abs, r)
}

// CopyIn copies a file from outside the library to rel.
func (v *FileSystemVault) CopyIn(src, rel string) (string, error) {
	abs, err := v.prepare(rel)
	if err != nil {
		return "", err
	}
	return v.ops.AtomicCopy(src, abs)
}

// CopyOut copies rel to dst outside the library.
func (v *FileSystemVault) CopyOut(rel, dst string) (string, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return "", err
	}
	if err := v.ops.EnsureDir(filepath.Dir(dst)); err != nil {
		return "", err
	}
	return v.ops.AtomicCopy(abs, dst)
}

// MoveOut moves rel to dst outside the library.
func (v *FileSystemVault) MoveOut(rel, dst string) error {
	abs, err := v.Abs(rel)
	if err != nil {
		return err
	}
	if err := v.ops.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return v.ops.AtomicMove(abs, dst)
}

// MoveIn moves a file from outside the library to rel.
func (v *FileSystemVault) MoveIn(src, rel string) error {
	abs, err := v.prepare(rel)
	if err != nil {
		return err
	}
	return v.ops.AtomicMove(src, abs)
}

// Open opens rel for reading. A missing file yields ErrNotFound.
func (v *FileSystemVault) Open(rel string) (io.ReadCloser, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rel, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete securely removes rel. A missing file is not an error.
func (v *FileSystemVault) Delete(rel string) error {
	abs, err := v.Abs(rel)
	if err != nil {
		return err
	}
	return v.ops.SafeDelete(abs)
}

// ValidateSetup verifies that the library directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	// Check that root directory exists and is a directory
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("library root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library root is not a directory: %s", v.root)
	}

	for _, dir := range []string{v.photosDir, v.thumbnailsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("library directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("library path is not a directory: %s", dir)
		}
	}
	return nil
}

// prepare resolves rel and makes sure its parent directory exists.
func (v *FileSystemVault) prepare(rel string) (string, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return "", err
	}
	if err := v.ops.EnsureDir(filepath.Dir(abs)); err != nil {
		return "", err
	}
	return abs, nil
}

// Compile-time check that FileSystemVault implements gallery.MediaStore interface
var _ gallery.MediaStore = (*FileSystemVault)(nil)
