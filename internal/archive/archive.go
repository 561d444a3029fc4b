// Package archive reads and writes the ZIP container that carries a gallery
// backup: metadata.json, photos/<file> and thumbnails/thumb_<file>.
//
// Reading is hostile-input safe. Before anything is written, the declared
// entry count, total size, per-entry compression ratio and entry names are
// checked against Limits; during extraction the actual bytes produced are
// counted again, and anything written is removed on failure.
package archive

import (
	"math"
	"strings"

	apperrors "photovault/internal/errors"
)

// Limits bounds what an archive may expand to.
type Limits struct {
	MaxEntries          int
	MaxTotalSize        int64
	MaxCompressionRatio int64
}

// DefaultLimits returns the limits used for backup archives.
func DefaultLimits() Limits {
	return Limits{
		MaxEntries:          10000,
		MaxTotalSize:        1 << 30,
		MaxCompressionRatio: 100,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxEntries <= 0 {
		l.MaxEntries = d.MaxEntries
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	if l.MaxCompressionRatio <= 0 {
		l.MaxCompressionRatio = d.MaxCompressionRatio
	}
	return l
}

// maxMetadataSize caps how much of metadata.json is read into memory.
const maxMetadataSize = 64 << 20

// SanitizeName normalizes separators and strips parent references and
// leading slashes. An entry whose sanitized name differs from its raw name is
// rejected by the reader.
func SanitizeName(name string) string {
	s := strings.ReplaceAll(name, `\`, "/")
	for {
		next := strings.ReplaceAll(s, "../", "")
		next = strings.TrimLeft(next, "/")
		if next == s {
			break
		}
		s = next
	}
	if s == ".." || strings.HasSuffix(s, "/..") {
		s = strings.TrimSuffix(s, "..")
	}
	return s
}

// checkName returns a PathTraversal error for names that would escape the
// extraction directory.
func checkName(name string) error {
	if name == "" || SanitizeName(name) != name || strings.Contains(name, ":") {
		return &apperrors.SecurityError{Kind: apperrors.PathTraversal, Entry: name}
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return &apperrors.SecurityError{Kind: apperrors.PathTraversal, Entry: name}
		}
	}
	return nil
}

// suspiciousRatio reports whether an entry expands more than maxRatio times.
// A non-empty entry that claims zero compressed bytes is always suspicious.
func suspiciousRatio(compressed, uncompressed uint64, maxRatio int64) bool {
	if uncompressed == 0 {
		return false
	}
	if compressed == 0 {
		return true
	}
	if maxRatio <= 0 {
		return false
	}
	if compressed > math.MaxUint64/uint64(maxRatio) {
		return false
	}
	return uncompressed > compressed*uint64(maxRatio)
}
