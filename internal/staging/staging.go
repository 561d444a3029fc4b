package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"photovault/internal/gallery"
)

// FileSystemStagingArea hands out restore workspaces under a directory:
//
//	<staging_dir>/
//	  <workspace_id>/
//	    extract/    (archive entries, by entry name)
//	    parked/     (live files displaced by the restore)
type FileSystemStagingArea struct {
	dir string
	ops gallery.FileOps

	mu     sync.Mutex
	active map[string]bool
}

var _ gallery.StagingArea = (*FileSystemStagingArea)(nil)

// NewFileSystemStagingArea creates a staging area rooted at dir.
func NewFileSystemStagingArea(dir string, ops gallery.FileOps) (*FileSystemStagingArea, error) {
	if err := ops.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &FileSystemStagingArea{dir: dir, ops: ops, active: make(map[string]bool)}, nil
}

// NewWorkspace creates an empty workspace named after id.
func (s *FileSystemStagingArea) NewWorkspace(id string) (gallery.Workspace, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid workspace id %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[id] {
		return nil, fmt.Errorf("workspace %s is already in use", id)
	}
	root := filepath.Join(s.dir, id)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("workspace %s already exists", id)
	}

	ws := &workspace{
		area:      s,
		id:        id,
		root:      root,
		extract:   filepath.Join(root, "extract"),
		parkedDir: filepath.Join(root, "parked"),
	}
	for _, dir := range []string{ws.extract, ws.parkedDir} {
		if err := s.ops.EnsureDir(dir); err != nil {
			s.ops.SafeDelete(root)
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
	}
	s.active[id] = true
	return ws, nil
}

// Sweep securely removes workspaces left behind by restores that did not
// finish, e.g. after a crash. Workspaces in use are left alone. It returns
// the ids it removed.
func (s *FileSystemStagingArea) Sweep() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading staging directory: %w", err)
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || s.active[e.Name()] {
			continue
		}
		if err := s.ops.SafeDelete(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing stale workspace %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

func (s *FileSystemStagingArea) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

type workspace struct {
	area      *FileSystemStagingArea
	id        string
	root      string
	extract   string
	parkedDir string

	mu     sync.Mutex
	parked int
}

func (w *workspace) Dir() string { return w.extract }

func (w *workspace) Path(entry string) string {
	return filepath.Join(w.extract, filepath.FromSlash(entry))
}

// Park moves livePath into the workspace. Names are prefixed with a
// sequence number so files with the same base name do not collide.
func (w *workspace) Park(livePath string) (string, error) {
	w.mu.Lock()
	w.parked++
	dst := filepath.Join(w.parkedDir, fmt.Sprintf("%04d_%s", w.parked, filepath.Base(livePath)))
	w.mu.Unlock()

	if err := w.area.ops.AtomicMove(livePath, dst); err != nil {
		return "", fmt.Errorf("parking %s: %w", livePath, err)
	}
	return dst, nil
}

func (w *workspace) Cleanup() error {
	defer w.area.release(w.id)
	if err := w.area.ops.SafeDelete(w.root); err != nil {
		return fmt.Errorf("cleaning up workspace %s: %w", w.id, err)
	}
	return nil
}
