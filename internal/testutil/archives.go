package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry is one entry of a hand-built archive.
type ZipEntry struct {
	Name    string
	Data    []byte
	Deflate bool
}

// WriteZip writes entries verbatim to dir/name, without any of the checks
// the archive writer applies, so tests can build hostile input.
func WriteZip(t *testing.T, dir, name string, entries []ZipEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating zip fixture: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Store
		if e.Deflate {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("adding %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("writing %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip fixture: %v", err)
	}
	return path
}

const minimalManifest = `{"version":2,"kind":"full","categories":[],"photos":[],"photoFileManifest":[]}`

// ZipBomb returns an archive with a valid manifest and one 10 MiB entry of
// zeros that deflates far beyond a 100:1 ratio.
func ZipBomb(t *testing.T, dir string) string {
	t.Helper()
	return WriteZip(t, dir, "bomb.zip", []ZipEntry{
		{Name: "metadata.json", Data: []byte(minimalManifest)},
		{Name: "photos/bomb.jpg", Data: make([]byte, 10<<20), Deflate: true},
	})
}

// TraversalZip returns an archive with an entry named ../../etc/passwd.
func TraversalZip(t *testing.T, dir string) string {
	t.Helper()
	return WriteZip(t, dir, "traversal.zip", []ZipEntry{
		{Name: "metadata.json", Data: []byte(minimalManifest)},
		{Name: "../../etc/passwd", Data: []byte("root:x:0:0")},
	})
}

// EntryFloodZip returns an archive with n tiny entries plus the manifest.
func EntryFloodZip(t *testing.T, dir string, n int) string {
	t.Helper()
	entries := make([]ZipEntry, 0, n+1)
	entries = append(entries, ZipEntry{Name: "metadata.json", Data: []byte(minimalManifest)})
	for i := 0; i < n; i++ {
		entries = append(entries, ZipEntry{Name: fmt.Sprintf("photos/%05d.jpg", i), Data: []byte{byte(i)}})
	}
	return WriteZip(t, dir, "flood.zip", entries)
}
