package testutil

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"photovault/internal/credential"
	"photovault/internal/database"
	"photovault/internal/dedup"
	"photovault/internal/fs"
	"photovault/internal/model"
	"photovault/internal/staging"
	"photovault/internal/vault"
)

// Env is a complete gallery backend in a temporary directory: a migrated
// in-memory database, a media store, a restore staging area and an empty
// credential store.
type Env struct {
	Root        string
	Clock       *StubClock
	IDs         *StubIDGenerator
	DB          *database.SQLiteDatabase
	Ops         *fs.OSFileOps
	Media       *vault.FileSystemVault
	Staging     *staging.FileSystemStagingArea
	Credentials *credential.MemoryStore
}

// NewEnv builds an Env whose generated ids start with idPrefix, so two
// environments in one test never hand out the same id.
func NewEnv(t *testing.T, idPrefix string) *Env {
	t.Helper()

	root := t.TempDir()
	clock := FixedClock()
	ids := NewPrefixedIDGenerator(idPrefix)
	ops := fs.NewOSFileOps()

	media, err := vault.NewFileSystemVault(filepath.Join(root, "library"), ops)
	if err != nil {
		t.Fatalf("creating media store: %v", err)
	}
	area, err := staging.NewFileSystemStagingArea(filepath.Join(root, "staging"), ops)
	if err != nil {
		t.Fatalf("creating staging area: %v", err)
	}

	return &Env{
		Root:        root,
		Clock:       clock,
		IDs:         ids,
		DB:          NewTestDatabase(t, clock, ids),
		Ops:         ops,
		Media:       media,
		Staging:     area,
		Credentials: credential.NewMemoryStore(""),
	}
}

// AddCategory creates a category named name.
func (e *Env) AddCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	e.Clock.Tick()
	c := &model.Category{Name: name, DisplayName: name, Color: "#336699", Position: 10}
	if err := e.DB.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("CreateCategory(%s) error = %v", name, err)
	}
	return c
}

// AddPhoto stores a small file and its thumbnail in the media store and
// records an imported photo for it. n makes the content and name unique.
func (e *Env) AddPhoto(t *testing.T, categoryID string, n int) *model.Photo {
	t.Helper()
	e.Clock.Tick()

	fileName := fmt.Sprintf("photo-%03d.jpg", n)
	data := []byte(fmt.Sprintf("photo content %d", n))
	rel := e.Media.PhotoPath(fileName)
	if _, _, err := e.Media.Put(rel, bytes.NewReader(data)); err != nil {
		t.Fatalf("storing %s: %v", fileName, err)
	}
	thumb := []byte(fmt.Sprintf("thumbnail %d", n))
	if _, _, err := e.Media.Put(e.Media.ThumbnailPath(fileName), bytes.NewReader(thumb)); err != nil {
		t.Fatalf("storing thumbnail of %s: %v", fileName, err)
	}

	p := &model.Photo{
		Name:       fileName,
		Path:       rel,
		CategoryID: categoryID,
		Width:      640,
		Height:     480,
		Size:       int64(len(data)),
		Checksum:   dedup.HashBytes(data),
		Source:     model.SourceImported,
	}
	if err := e.DB.CreatePhoto(context.Background(), p); err != nil {
		t.Fatalf("CreatePhoto(%s) error = %v", fileName, err)
	}
	return p
}

// AddBundledPhoto records a photo that ships with the app and has no file.
func (e *Env) AddBundledPhoto(t *testing.T, categoryID, name string) *model.Photo {
	t.Helper()
	e.Clock.Tick()
	p := &model.Photo{
		Name:       name,
		Path:       "bundled/" + name,
		CategoryID: categoryID,
		Source:     model.SourceBundled,
	}
	if err := e.DB.CreatePhoto(context.Background(), p); err != nil {
		t.Fatalf("CreatePhoto(%s) error = %v", name, err)
	}
	return p
}

// Seed creates categories custom categories and spreads photos photos over
// them round-robin.
func (e *Env) Seed(t *testing.T, categories, photos int) ([]*model.Category, []*model.Photo) {
	t.Helper()
	cats := make([]*model.Category, 0, categories)
	for i := 0; i < categories; i++ {
		cats = append(cats, e.AddCategory(t, fmt.Sprintf("category-%d", i+1)))
	}
	ps := make([]*model.Photo, 0, photos)
	for i := 0; i < photos; i++ {
		ps = append(ps, e.AddPhoto(t, cats[i%len(cats)].ID, i+1))
	}
	return cats, ps
}
