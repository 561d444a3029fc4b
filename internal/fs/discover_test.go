package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestOSSourceFinder_Discover(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "a")
	writeFile(t, filepath.Join(root, "b.png"), "b")
	writeFile(t, filepath.Join(root, ".DS_Store"), "junk")
	writeFile(t, filepath.Join(root, "a.xmp"), "sidecar")
	writeFile(t, filepath.Join(root, "2024", "c.jpg"), "c")
	writeFile(t, filepath.Join(root, ".thumbnails", "t.jpg"), "thumb")
	writeFile(t, filepath.Join(root, IgnoreFileName), "*.xmp\n")

	finder := NewOSSourceFinder(nil)

	t.Run("flat", func(t *testing.T) {
		got, err := finder.Discover([]string{root}, false)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		want := []string{filepath.Join(root, "a.jpg"), filepath.Join(root, "b.png")}
		assertPaths(t, got, want)
	})

	t.Run("recursive", func(t *testing.T) {
		got, err := finder.Discover([]string{root}, true)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		want := []string{
			filepath.Join(root, "2024", "c.jpg"),
			filepath.Join(root, "a.jpg"),
			filepath.Join(root, "b.png"),
		}
		assertPaths(t, got, want)
	})

	t.Run("explicit file is never ignored", func(t *testing.T) {
		got, err := finder.Discover([]string{filepath.Join(root, "a.xmp")}, false)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		assertPaths(t, got, []string{filepath.Join(root, "a.xmp")})
	})

	t.Run("configured patterns", func(t *testing.T) {
		got, err := NewOSSourceFinder([]string{"*.png"}).Discover([]string{root}, false)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		assertPaths(t, got, []string{filepath.Join(root, "a.jpg")})
	})
}

func TestOSSourceFinder_RejectsSymlink(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	target := filepath.Join(root, "real.jpg")
	writeFile(t, target, "x")
	link := filepath.Join(root, "link.jpg")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := NewOSSourceFinder(nil).Discover([]string{link}, false); err == nil {
		t.Error("Discover() expected error for symlink")
	}
}

func TestOSSourceFinder_MissingPath(t *testing.T) {
	t.Parallel()
	if _, err := NewOSSourceFinder(nil).Discover([]string{"/nonexistent/photos"}, false); err == nil {
		t.Error("Discover() expected error for missing path")
	}
}

func assertPaths(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %d paths %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
