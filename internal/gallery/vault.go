package gallery

import "io"

// MediaStore is the live library of photo and thumbnail files.
// Paths handed to it are relative to its root, e.g. "photos/a.jpg".
type MediaStore interface {
	// PhotoPath returns the store-relative path for a photo file name.
	PhotoPath(fileName string) string

	// ThumbnailPath returns the store-relative path for a photo's thumbnail.
	ThumbnailPath(fileName string) string

	// Abs resolves a store-relative path, refusing paths outside the root.
	Abs(rel string) (string, error)

	Exists(rel string) bool

	// Put writes r at rel and returns its SHA-256 and size.
	Put(rel string, r io.Reader) (checksum string, size int64, err error)

	// CopyIn copies a file from outside the store to rel.
	CopyIn(src, rel string) (checksum string, err error)

	// CopyOut copies rel to a file outside the store.
	CopyOut(rel, dst string) (checksum string, err error)

	// MoveOut moves rel to a file outside the store.
	MoveOut(rel, dst string) error

	// MoveIn moves a file from outside the store to rel.
	MoveIn(src, rel string) error

	Open(rel string) (io.ReadCloser, error)

	// Delete securely removes rel. A missing file is not an error.
	Delete(rel string) error

	// ValidateSetup verifies that the store directories are accessible.
	ValidateSetup() error
}
