// Package fs implements the file operations the gallery relies on: atomic
// writes and moves with checksum verification, secure deletion, per-path
// locking, and discovery of import sources.
package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
)

// Seams for fault injection in tests.
var (
	rename     = os.Rename
	copyData   = io.Copy
	retryDelay = 50 * time.Millisecond
)

// OSFileOps implements gallery.FileOps on the real filesystem.
type OSFileOps struct {
	locks sync.Map // path -> *sync.Mutex
}

var _ gallery.FileOps = (*OSFileOps)(nil)

// NewOSFileOps creates a new OSFileOps.
func NewOSFileOps() *OSFileOps {
	return &OSFileOps{}
}

// LockPath serializes writers of the same destination.
func (o *OSFileOps) LockPath(path string) func() {
	m := o.mutexFor("lock:" + filepath.Clean(path))
	m.Lock()
	return m.Unlock
}

func (o *OSFileOps) mutexFor(key string) *sync.Mutex {
	v, _ := o.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// EnsureDir creates path and its parents.
func (o *OSFileOps) EnsureDir(path string) error {
	m := o.mutexFor("dir:" + filepath.Clean(path))
	m.Lock()
	defer m.Unlock()
	return withRetry("mkdir", path, func() error { return os.MkdirAll(path, 0755) })
}

// AtomicMove renames src to dst, falling back to a verified copy when the
// rename is not possible (for example across devices). The source is removed
// only after dst is in place.
func (o *OSFileOps) AtomicMove(src, dst string) error {
	if err := o.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := rename(src, dst); err == nil {
		return nil
	}

	if _, err := o.copyVerified(src, dst); err != nil {
		return err
	}
	if err := withRetry("remove", src, func() error { return os.Remove(src) }); err != nil {
		return fmt.Errorf("removing source after move: %w", err)
	}
	return nil
}

// AtomicCopy copies src to dst and returns the SHA-256 of the copy.
func (o *OSFileOps) AtomicCopy(src, dst string) (string, error) {
	if err := o.EnsureDir(filepath.Dir(dst)); err != nil {
		return "", err
	}
	return o.copyVerified(src, dst)
}

// copyVerified streams src into a temp sibling of dst, checks the bytes on
// disk hash the same as the bytes read from src, and renames it over dst.
func (o *OSFileOps) copyVerified(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", &apperrors.IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	sum, _, err := o.writeTemp(dst, in, true)
	return sum, err
}

// AtomicWrite writes r to dst through a temp file and returns its SHA-256
// and size.
func (o *OSFileOps) AtomicWrite(dst string, r io.Reader) (string, int64, error) {
	if err := o.EnsureDir(filepath.Dir(dst)); err != nil {
		return "", 0, err
	}
	return o.writeTemp(dst, r, false)
}

// writeTemp writes r to a temp file next to dst, syncs it, and renames it
// into place. When reread is set the checksum is computed from the bytes on
// disk rather than the bytes written.
func (o *OSFileOps) writeTemp(dst string, r io.Reader, reread bool) (string, int64, error) {
	dir := filepath.Dir(dst)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", 0, &apperrors.IOError{Op: "create temp", Path: dir, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	n, err := copyData(io.MultiWriter(tmpFile, h), r)
	if err != nil {
		return "", 0, &apperrors.IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		return "", 0, &apperrors.IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return "", 0, &apperrors.IOError{Op: "close", Path: tmpPath, Err: err}
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if reread {
		onDisk, err := hashFile(tmpPath)
		if err != nil {
			return "", 0, err
		}
		if onDisk != sum {
			return "", 0, &apperrors.IntegrityError{File: tmpPath, Expected: sum, Actual: onDisk}
		}
	}

	if err := withRetry("rename", dst, func() error { return rename(tmpPath, dst) }); err != nil {
		return "", 0, err
	}
	success = true
	return sum, n, nil
}

// SafeDelete overwrites path with zeros, removes it and checks it is gone.
// Directories are handled recursively.
func (o *OSFileOps) SafeDelete(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &apperrors.IOError{Op: "stat", Path: path, Err: err}
	}

	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				return overwrite(p)
			}
			return nil
		})
		if err != nil {
			return &apperrors.IOError{Op: "overwrite", Path: path, Err: err}
		}
		if err := withRetry("remove", path, func() error { return os.RemoveAll(path) }); err != nil {
			return err
		}
	} else {
		if info.Mode().IsRegular() {
			if err := overwrite(path); err != nil {
				return &apperrors.IOError{Op: "overwrite", Path: path, Err: err}
			}
		}
		if err := withRetry("remove", path, func() error { return os.Remove(path) }); err != nil {
			return err
		}
	}

	if _, err := os.Lstat(path); !errors.Is(err, os.ErrNotExist) {
		return &apperrors.IOError{Op: "remove", Path: path, Err: errors.New("still present after delete")}
	}
	return nil
}

func overwrite(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	zeros := make([]byte, 32*1024)
	for remaining := info.Size(); remaining > 0; {
		n := int64(len(zeros))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(zeros[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return f.Sync()
}

// Verify returns an IntegrityError when path is missing or does not hash to
// checksum.
func (o *OSFileOps) Verify(path, checksum string) error {
	actual, err := hashFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &apperrors.IntegrityError{File: path, Expected: checksum, Missing: true}
	}
	if err != nil {
		return err
	}
	if actual != checksum {
		return &apperrors.IntegrityError{File: path, Expected: checksum, Actual: actual}
	}
	return nil
}

// HashFile returns the hex SHA-256 of the file at path.
func (o *OSFileOps) HashFile(path string) (string, error) {
	return hashFile(path)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &apperrors.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &apperrors.IOError{Op: "read", Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// withRetry runs fn, retrying once after retryDelay when the failure is
// transient.
func withRetry(op, path string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !isTransient(err) {
		return &apperrors.IOError{Op: op, Path: path, Err: err}
	}
	time.Sleep(retryDelay)
	if err := fn(); err != nil {
		return &apperrors.IOError{Op: op, Path: path, Err: err, Transient: isTransient(err)}
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETXTBSY)
}
