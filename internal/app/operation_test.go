package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	start := time.Date(2024, 6, 15, 16, 30, 45, 0, time.FixedZone("CEST", 2*3600))

	op := NewOperation("Import", start)

	if op.ID != "20240615T143045Z" {
		t.Errorf("ID = %q, want %q", op.ID, "20240615T143045Z")
	}
	if op.Name != "Import" {
		t.Errorf("Name = %q, want %q", op.Name, "Import")
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want %q", op.Status, "success")
	}
	if op.Mutating() {
		t.Error("new operation should not be mutating")
	}
	if got := op.SnapshotName("dev-1"); got != "dev-1-20240615T143045Z.db" {
		t.Errorf("SnapshotName() = %q", got)
	}
}

func TestOperation_Finish(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: "success"},
		{name: "error", err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Backup", time.Now())
			if got := op.Finish(tt.err); got != tt.err {
				t.Errorf("Finish() = %v, want %v", got, tt.err)
			}
			if op.Status != tt.want {
				t.Errorf("Status = %q, want %q", op.Status, tt.want)
			}
		})
	}
}

func TestPruneSnapshots(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"dev-20240101T000000Z.db",
		"dev-20240102T000000Z.db",
		"dev-20240103T000000Z.db",
		"dev-20240104T000000Z.db",
		"other-20240101T000000Z.db",
		"dev-notes.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := pruneSnapshots(dir, "dev", 2)
	if err != nil {
		t.Fatalf("pruneSnapshots() error = %v", err)
	}
	if len(removed) != 2 || removed[0] != "dev-20240101T000000Z.db" || removed[1] != "dev-20240102T000000Z.db" {
		t.Errorf("removed = %v", removed)
	}
	for _, keep := range []string{"dev-20240103T000000Z.db", "dev-20240104T000000Z.db", "other-20240101T000000Z.db", "dev-notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, keep)); err != nil {
			t.Errorf("%s was removed", keep)
		}
	}

	t.Run("missing directory", func(t *testing.T) {
		removed, err := pruneSnapshots(filepath.Join(dir, "nope"), "dev", 2)
		if err != nil || removed != nil {
			t.Errorf("pruneSnapshots() = %v, %v; want nothing", removed, err)
		}
	})
}
