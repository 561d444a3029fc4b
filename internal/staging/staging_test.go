package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"photovault/internal/config"
	"photovault/internal/fs"
)

func newTestSA(t *testing.T) *FileSystemStagingArea {
	t.Helper()
	sa, err := NewFileSystemStagingArea(filepath.Join(t.TempDir(), "staging"), fs.NewOSFileOps())
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	return sa
}

func TestStagingArea_NewWorkspace(t *testing.T) {
	t.Run("creates an empty extract directory", func(t *testing.T) {
		sa := newTestSA(t)

		ws, err := sa.NewWorkspace("restore-1")
		if err != nil {
			t.Fatalf("NewWorkspace() error = %v", err)
		}
		entries, err := os.ReadDir(ws.Dir())
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("workspace not empty: %v", entries)
		}
		if got, want := ws.Path("photos/a.jpg"), filepath.Join(ws.Dir(), "photos", "a.jpg"); got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})

	t.Run("rejects an id in use", func(t *testing.T) {
		sa := newTestSA(t)
		if _, err := sa.NewWorkspace("restore-1"); err != nil {
			t.Fatalf("NewWorkspace() error = %v", err)
		}
		if _, err := sa.NewWorkspace("restore-1"); err == nil {
			t.Error("NewWorkspace() expected error for id in use")
		}
	})

	t.Run("rejects ids with separators", func(t *testing.T) {
		sa := newTestSA(t)
		for _, id := range []string{"", "..", "a/b", `a\b`} {
			if _, err := sa.NewWorkspace(id); err == nil {
				t.Errorf("NewWorkspace(%q) expected error", id)
			}
		}
	})
}

func TestWorkspace_ParkAndCleanup(t *testing.T) {
	sa := newTestSA(t)
	ws, err := sa.NewWorkspace("restore-1")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	live := t.TempDir()
	var parked []string
	for _, dir := range []string{"a", "b"} {
		path := filepath.Join(live, dir, "same.jpg")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(dir), 0644); err != nil {
			t.Fatal(err)
		}
		p, err := ws.Park(path)
		if err != nil {
			t.Fatalf("Park() error = %v", err)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Park() left %s in place", path)
		}
		parked = append(parked, p)
	}
	if parked[0] == parked[1] {
		t.Fatal("files with the same name were parked at the same path")
	}
	data, _ := os.ReadFile(parked[1])
	if string(data) != "b" {
		t.Errorf("parked content = %q, want b", data)
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(ws.Dir())); !errors.Is(err, os.ErrNotExist) {
		t.Error("workspace still exists after Cleanup")
	}

	// The id is free again.
	if _, err := sa.NewWorkspace("restore-1"); err != nil {
		t.Errorf("NewWorkspace() after cleanup error = %v", err)
	}
}

func TestStagingArea_Sweep(t *testing.T) {
	sa := newTestSA(t)
	stale := filepath.Join(sa.dir, "crashed")
	if err := os.MkdirAll(filepath.Join(stale, "extract"), 0755); err != nil {
		t.Fatal(err)
	}
	active, err := sa.NewWorkspace("running")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	removed, err := sa.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "crashed" {
		t.Errorf("Sweep() removed %v, want [crashed]", removed)
	}
	if _, err := os.Stat(active.Dir()); err != nil {
		t.Errorf("active workspace removed: %v", err)
	}
}

func TestNewStagingAreaFromConfig(t *testing.T) {
	if _, err := NewStagingAreaFromConfig(config.StagingConfig{}, fs.NewOSFileOps()); err == nil {
		t.Error("NewStagingAreaFromConfig() expected error for missing dir")
	}
	sa, err := NewStagingAreaFromConfig(config.StagingConfig{Dir: t.TempDir()}, fs.NewOSFileOps())
	if err != nil || sa == nil {
		t.Errorf("NewStagingAreaFromConfig() = %v, %v", sa, err)
	}
}
