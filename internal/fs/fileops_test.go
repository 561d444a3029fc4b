package fs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"photovault/internal/dedup"
	apperrors "photovault/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWrite(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	dst := filepath.Join(t.TempDir(), "photos", "a.jpg")

	sum, size, err := ops.AtomicWrite(dst, strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}
	if size != int64(len("jpeg bytes")) {
		t.Errorf("size = %d", size)
	}
	if sum != dedup.HashBytes([]byte("jpeg bytes")) {
		t.Errorf("checksum = %s", sum)
	}
	if readFile(t, dst) != "jpeg bytes" {
		t.Error("content mismatch")
	}
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestAtomicCopy(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "out", "dst.jpg")
	writeFile(t, src, "original")

	sum, err := ops.AtomicCopy(src, dst)
	if err != nil {
		t.Fatalf("AtomicCopy() error = %v", err)
	}
	if sum != dedup.HashBytes([]byte("original")) {
		t.Errorf("checksum = %s", sum)
	}
	if readFile(t, src) != "original" || readFile(t, dst) != "original" {
		t.Error("source or destination content wrong")
	}
}

func TestAtomicMove_Rename(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "nested", "dst.jpg")
	writeFile(t, src, "moved")

	if err := ops.AtomicMove(src, dst); err != nil {
		t.Fatalf("AtomicMove() error = %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Error("source still present after move")
	}
	if readFile(t, dst) != "moved" {
		t.Error("destination content wrong")
	}
}

// The tests below replace package seams and must not run in parallel.

func crossDeviceRename(src string) func(string, string) error {
	return func(from, to string) error {
		if from == src {
			return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EXDEV}
		}
		return os.Rename(from, to)
	}
}

func TestAtomicMove_CopyFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst", "dst.jpg")
	writeFile(t, src, "across devices")

	rename = crossDeviceRename(src)
	t.Cleanup(func() { rename = os.Rename })

	if err := NewOSFileOps().AtomicMove(src, dst); err != nil {
		t.Fatalf("AtomicMove() error = %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Error("source not removed after verified copy")
	}
	if readFile(t, dst) != "across devices" {
		t.Error("destination content wrong")
	}
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestAtomicMove_CrashMidCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst", "dst.jpg")
	writeFile(t, src, strings.Repeat("x", 4096))
	writeFile(t, dst, "previous")

	rename = crossDeviceRename(src)
	copyData = func(w io.Writer, r io.Reader) (int64, error) {
		n, _ := io.CopyN(w, r, 100)
		return n, errors.New("device removed")
	}
	t.Cleanup(func() {
		rename = os.Rename
		copyData = io.Copy
	})

	err := NewOSFileOps().AtomicMove(src, dst)
	if err == nil {
		t.Fatal("AtomicMove() expected error")
	}
	var ioErr *apperrors.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("error = %T, want *IOError", err)
	}

	if readFile(t, src) != strings.Repeat("x", 4096) {
		t.Error("source modified by failed move")
	}
	if readFile(t, dst) != "previous" {
		t.Error("destination modified by failed move")
	}
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestWithRetry_TransientOnce(t *testing.T) {
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = 50 * time.Millisecond })

	calls := 0
	err := withRetry("rename", "/x", func() error {
		calls++
		if calls == 1 {
			return syscall.EBUSY
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	calls = 0
	err = withRetry("rename", "/x", func() error {
		calls++
		return syscall.EAGAIN
	})
	var ioErr *apperrors.IOError
	if !errors.As(err, &ioErr) || !ioErr.Transient {
		t.Errorf("error = %v, want transient IOError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	calls = 0
	err = withRetry("rename", "/x", func() error {
		calls++
		return syscall.EACCES
	})
	if calls != 1 {
		t.Errorf("permanent error retried: calls = %d", calls)
	}
	if !errors.Is(err, syscall.EACCES) {
		t.Errorf("error = %v, want EACCES", err)
	}
}

func TestSafeDelete(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	dir := t.TempDir()

	t.Run("file", func(t *testing.T) {
		p := filepath.Join(dir, "secret.jpg")
		writeFile(t, p, "pixels")
		if err := ops.SafeDelete(p); err != nil {
			t.Fatalf("SafeDelete() error = %v", err)
		}
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Error("file still present")
		}
	})

	t.Run("directory", func(t *testing.T) {
		d := filepath.Join(dir, "workspace")
		writeFile(t, filepath.Join(d, "photos", "a.jpg"), "a")
		writeFile(t, filepath.Join(d, "metadata.json"), "{}")
		if err := ops.SafeDelete(d); err != nil {
			t.Fatalf("SafeDelete() error = %v", err)
		}
		if _, err := os.Stat(d); !errors.Is(err, os.ErrNotExist) {
			t.Error("directory still present")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if err := ops.SafeDelete(filepath.Join(dir, "nope")); err != nil {
			t.Errorf("SafeDelete() on missing path error = %v", err)
		}
	})
}

func TestVerify(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	p := filepath.Join(t.TempDir(), "a.jpg")
	writeFile(t, p, "content")
	good := dedup.HashBytes([]byte("content"))

	if err := ops.Verify(p, good); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	var ie *apperrors.IntegrityError
	err := ops.Verify(p, dedup.HashBytes([]byte("other")))
	if !errors.As(err, &ie) || ie.Missing {
		t.Errorf("Verify() mismatch error = %v", err)
	}

	err = ops.Verify(p+".gone", good)
	if !errors.As(err, &ie) || !ie.Missing {
		t.Errorf("Verify() missing error = %v", err)
	}
}

func TestLockPath_Serializes(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	dst := filepath.Join(t.TempDir(), "shared.jpg")

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ops.LockPath(dst)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("%d writers held the lock at once", maxSeen)
	}
}

func TestEnsureDir_Concurrent(t *testing.T) {
	t.Parallel()
	ops := NewOSFileOps()
	target := filepath.Join(t.TempDir(), "a", "b", "c")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ops.EnsureDir(target)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("EnsureDir() error = %v", err)
		}
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}

func TestHashFile(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "a.bin")
	data := bytes.Repeat([]byte{0xab}, 100000)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := NewOSFileOps().HashFile(p)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if got != dedup.HashBytes(data) {
		t.Errorf("HashFile() = %s", got)
	}
}
