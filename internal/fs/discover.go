package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"photovault/internal/gallery"
)

// OSSourceFinder expands import arguments on the real filesystem.
type OSSourceFinder struct {
	ignore *IgnoreMatcher
}

var _ gallery.SourceFinder = (*OSSourceFinder)(nil)

// NewOSSourceFinder creates a finder that skips the default sidecar files plus
// the given patterns.
func NewOSSourceFinder(ignorePatterns []string) *OSSourceFinder {
	all := append(append([]string{}, defaultIgnorePatterns...), ignorePatterns...)
	return &OSSourceFinder{ignore: NewIgnoreMatcher(all)}
}

// Discover returns the regular files named by paths. Files named explicitly
// are always returned; files found inside directories are filtered through
// the ignore patterns and the directory's own .pvignore.
func (f *OSSourceFinder) Discover(paths []string, recursive bool) ([]string, error) {
	var out []string
	for _, raw := range paths {
		abs, info, err := resolve(raw)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		found, err := f.findFiles(abs, recursive)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// resolve makes rawPath absolute and rejects anything that is neither a
// regular file nor a directory.
func resolve(rawPath string) (string, os.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return "", nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets not supported: %s", absPath)
	}
	return absPath, info, nil
}

func (f *OSSourceFinder) findFiles(root string, recursive bool) ([]string, error) {
	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := f.ignore.With(local)

	var paths []string
	if recursive {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			if d.IsDir() {
				if ignore.MatchDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && !ignore.Match(rel) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
		return paths, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ignore.Match(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(root, entry.Name()))
	}
	return paths, nil
}
