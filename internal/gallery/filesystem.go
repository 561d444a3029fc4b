package gallery

import "io"

// FileOps performs the file mutations backup, restore and import rely on.
// Every write lands through a temp file and a rename, so a destination is
// either fully written or untouched.
type FileOps interface {
	// AtomicMove moves src to dst. The source is removed only after dst is
	// complete and verified.
	AtomicMove(src, dst string) error

	// AtomicCopy copies src to dst and returns the SHA-256 of the copy.
	AtomicCopy(src, dst string) (checksum string, err error)

	// AtomicWrite writes r to dst and returns its SHA-256 and size.
	AtomicWrite(dst string, r io.Reader) (checksum string, size int64, err error)

	// SafeDelete overwrites, removes and verifies the removal of path.
	// A missing path is not an error.
	SafeDelete(path string) error

	// EnsureDir creates path and its parents. Safe for concurrent use.
	EnsureDir(path string) error

	// LockPath serializes writers of the same destination.
	LockPath(path string) (unlock func())

	// Verify returns an IntegrityError when path is missing or its SHA-256
	// differs from checksum.
	Verify(path, checksum string) error

	HashFile(path string) (string, error)
}

// SourceFinder expands import arguments into candidate files.
type SourceFinder interface {
	// Discover returns regular files named by paths, descending into
	// directories (recursively when asked) and skipping ignored names.
	Discover(paths []string, recursive bool) ([]string, error)
}
