package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// Reader gives checked access to an archive's entries.
type Reader struct {
	path   string
	limits Limits
	rc     *zip.ReadCloser
	files  map[string]*zip.File
}

// Open opens the archive at path. A file that is not a readable ZIP yields a
// ValidationError. Open does not run Check.
func Open(path string, limits Limits) (*Reader, error) {
	// An insecure entry name comes back as an error alongside a usable
	// reader; Check reports it as PathTraversal.
	rc, err := zip.OpenReader(path)
	if rc == nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		return nil, &apperrors.ValidationError{Reason: "not a readable zip archive", Err: err}
	}
	r := &Reader{
		path:   path,
		limits: limits.withDefaults(),
		rc:     rc,
		files:  make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		r.files[f.Name] = f
	}
	return r, nil
}

// Close releases the archive file.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// Check validates the archive against the limits using the central directory
// alone. Nothing is read or written.
func (r *Reader) Check() error {
	if len(r.rc.File) > r.limits.MaxEntries {
		return &apperrors.SecurityError{
			Kind:   apperrors.TooManyEntries,
			Detail: fmt.Sprintf("%d entries, limit %d", len(r.rc.File), r.limits.MaxEntries),
		}
	}

	var total uint64
	for _, f := range r.rc.File {
		if err := checkName(f.Name); err != nil {
			return err
		}
		total += f.UncompressedSize64
		if total > uint64(r.limits.MaxTotalSize) {
			return &apperrors.SecurityError{
				Kind:   apperrors.SizeLimitExceeded,
				Entry:  f.Name,
				Detail: fmt.Sprintf("declared size exceeds %d bytes", r.limits.MaxTotalSize),
			}
		}
		if suspiciousRatio(f.CompressedSize64, f.UncompressedSize64, r.limits.MaxCompressionRatio) {
			return &apperrors.SecurityError{
				Kind:   apperrors.SuspiciousCompressionRatio,
				Entry:  f.Name,
				Detail: fmt.Sprintf("%d bytes from %d compressed", f.UncompressedSize64, f.CompressedSize64),
			}
		}
	}
	return nil
}

// Entries returns every entry name, sorted.
func (r *Reader) Entries() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the archive contains name.
func (r *Reader) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// OpenEntry opens an entry for reading. The reader stops with an error if
// the entry expands beyond its ratio limit.
func (r *Reader) OpenEntry(name string) (io.ReadCloser, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("archive entry %s: %w", name, apperrors.ErrNotFound)
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", name, err)
	}
	return &boundedReader{
		rc:    rc,
		name:  name,
		limit: r.entryLimit(f),
	}, nil
}

// ReadMetadata returns the raw metadata.json bytes.
func (r *Reader) ReadMetadata() ([]byte, error) {
	if !r.Has(model.MetadataEntry) {
		return nil, apperrors.Validationf("missing %s", model.MetadataEntry)
	}
	rc, err := r.OpenEntry(model.MetadataEntry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMetadataSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	if len(data) > maxMetadataSize {
		return nil, &apperrors.SecurityError{Kind: apperrors.SizeLimitExceeded, Entry: model.MetadataEntry}
	}
	return data, nil
}

// HashEntry returns the SHA-256 of an entry's content without extracting it.
func (r *Reader) HashEntry(name string) (string, error) {
	rc, err := r.OpenEntry(name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("hashing entry %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ExtractStats summarizes an extraction.
type ExtractStats struct {
	Files int
	Bytes int64
}

// Extract checks the archive and writes every entry under destDir. The byte
// counts are enforced against the actual decompressed output, not the
// headers. On any failure everything Extract created is removed.
func (r *Reader) Extract(ctx context.Context, destDir string) (*ExtractStats, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}

	x := &extraction{root: destDir}
	stats, err := r.extractAll(ctx, x)
	if err != nil {
		x.undo()
		return nil, err
	}
	return stats, nil
}

func (r *Reader) extractAll(ctx context.Context, x *extraction) (*ExtractStats, error) {
	if err := x.mkdir(x.root); err != nil {
		return nil, err
	}

	stats := &ExtractStats{}
	remaining := r.limits.MaxTotalSize
	for _, f := range r.rc.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := filepath.Join(x.root, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(x.root)+string(os.PathSeparator)) {
			return nil, &apperrors.SecurityError{Kind: apperrors.PathTraversal, Entry: f.Name}
		}

		if strings.HasSuffix(f.Name, "/") {
			if err := x.mkdir(target); err != nil {
				return nil, err
			}
			continue
		}
		if err := x.mkdir(filepath.Dir(target)); err != nil {
			return nil, err
		}

		n, err := r.extractFile(f, target, remaining, x)
		if err != nil {
			return nil, err
		}
		remaining -= n
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

func (r *Reader) extractFile(f *zip.File, target string, remaining int64, x *extraction) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", target, err)
	}
	x.files = append(x.files, target)

	limit := r.entryLimit(f)
	if remaining < limit {
		limit = remaining
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	closeErr := out.Close()
	if err != nil {
		return n, fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if closeErr != nil {
		return n, fmt.Errorf("closing %s: %w", target, closeErr)
	}

	if n > remaining {
		return n, &apperrors.SecurityError{
			Kind:   apperrors.SizeLimitExceeded,
			Entry:  f.Name,
			Detail: fmt.Sprintf("extracted data exceeds %d bytes", r.limits.MaxTotalSize),
		}
	}
	if n > limit || suspiciousRatio(f.CompressedSize64, uint64(n), r.limits.MaxCompressionRatio) {
		return n, &apperrors.SecurityError{
			Kind:   apperrors.SuspiciousCompressionRatio,
			Entry:  f.Name,
			Detail: fmt.Sprintf("%d bytes produced from %d compressed", n, f.CompressedSize64),
		}
	}
	return n, nil
}

// entryLimit is the most an entry may produce given its compressed size.
func (r *Reader) entryLimit(f *zip.File) int64 {
	if f.CompressedSize64 == 0 {
		return 0
	}
	limit := f.CompressedSize64 * uint64(r.limits.MaxCompressionRatio)
	if limit/uint64(r.limits.MaxCompressionRatio) != f.CompressedSize64 || limit > uint64(r.limits.MaxTotalSize) {
		return r.limits.MaxTotalSize
	}
	return int64(limit)
}

// boundedReader fails once an entry produces more than limit bytes.
type boundedReader struct {
	rc    io.ReadCloser
	name  string
	limit int64
	read  int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		return n, &apperrors.SecurityError{Kind: apperrors.SuspiciousCompressionRatio, Entry: b.name}
	}
	return n, err
}

func (b *boundedReader) Close() error { return b.rc.Close() }

// extraction records what was created so a failed extraction can be undone.
type extraction struct {
	root  string
	dirs  []string
	files []string
}

func (x *extraction) mkdir(dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		x.dirs = append(x.dirs, missing[i])
	}
	return nil
}

func (x *extraction) undo() {
	for i := len(x.files) - 1; i >= 0; i-- {
		os.Remove(x.files[i])
	}
	for i := len(x.dirs) - 1; i >= 0; i-- {
		os.Remove(x.dirs[i])
	}
}
