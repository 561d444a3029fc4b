package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"photovault/internal/model"
)

// Writer builds an archive file. Media is stored uncompressed (JPEG and PNG
// do not shrink further); metadata is deflated.
type Writer struct {
	path  string
	f     *os.File
	zw    *zip.Writer
	names map[string]bool
	now   time.Time
}

// Create starts a new archive at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	return &Writer{
		path:  path,
		f:     f,
		zw:    zip.NewWriter(f),
		names: make(map[string]bool),
		now:   time.Now(),
	}, nil
}

// WriteMetadata writes the metadata.json entry.
func (w *Writer) WriteMetadata(data []byte) error {
	ew, err := w.create(model.MetadataEntry, zip.Deflate)
	if err != nil {
		return err
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// AddFile streams r into a stored entry and returns the SHA-256 and size of
// what was written.
func (w *Writer) AddFile(name string, r io.Reader) (string, int64, error) {
	ew, err := w.create(name, zip.Store)
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(ew, h), r)
	if err != nil {
		return "", 0, fmt.Errorf("writing %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func (w *Writer) create(name string, method uint16) (io.Writer, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if w.names[name] {
		return nil, fmt.Errorf("duplicate archive entry %s", name)
	}
	w.names[name] = true

	hdr := &zip.FileHeader{Name: name, Method: method, Modified: w.now}
	hdr.SetMode(0644)
	ew, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("creating entry %s: %w", name, err)
	}
	return ew, nil
}

// Close finalizes the central directory and syncs the file.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// Abort discards a partially written archive.
func (w *Writer) Abort() {
	w.zw.Close()
	w.f.Close()
	os.Remove(w.path)
}
