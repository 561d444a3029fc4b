package gallery_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"photovault/internal/archive"
	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
	"photovault/internal/model"
	"photovault/internal/testutil"
)

func newRestore(env *testutil.Env, db gallery.Database, limits archive.Limits) *gallery.RestoreOrchestrator {
	return gallery.NewRestoreOrchestrator(db, env.Media, env.Ops, env.Staging, env.Credentials, gallery.NewNopLogger(), env.IDs, limits)
}

// fullBackup writes a full backup of env, thumbnails and settings included.
func fullBackup(t *testing.T, env *testutil.Env, opts gallery.BackupOptions) string {
	t.Helper()
	opts.IncludeThumbnails = true
	opts.IncludeSettings = true
	dest := filepath.Join(t.TempDir(), "full.zip")
	if _, err := newBackup(env).CreateFull(context.Background(), dest, opts); err != nil {
		t.Fatalf("CreateFull() error = %v", err)
	}
	return dest
}

func fileSum(t *testing.T, env *testutil.Env, rel string) string {
	t.Helper()
	abs, err := env.Media.Abs(rel)
	if err != nil {
		t.Fatalf("Abs(%s) error = %v", rel, err)
	}
	sum, err := env.Ops.HashFile(abs)
	if err != nil {
		return ""
	}
	return sum
}

// libraryState is everything a restore may change, in comparable form.
type libraryState struct {
	Categories []string
	Photos     []string
	Theme      string
}

func captureState(t *testing.T, env *testutil.Env) libraryState {
	t.Helper()
	ctx := context.Background()
	cats, err := env.DB.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	photos, err := env.DB.ListPhotos(ctx, "")
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	settings, err := env.DB.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}

	var s libraryState
	for _, c := range cats {
		s.Categories = append(s.Categories, fmt.Sprintf("%s|%s|%s|%d", c.ID, c.Name, c.Color, c.Position))
	}
	for _, p := range photos {
		thumb := env.Media.Exists(env.Media.ThumbnailPath(path.Base(p.Path)))
		s.Photos = append(s.Photos, fmt.Sprintf("%s|%s|%s|%s|file=%s|thumb=%v",
			p.ID, p.Path, p.CategoryID, p.Checksum, fileSum(t, env, p.Path), thumb))
	}
	sort.Strings(s.Categories)
	sort.Strings(s.Photos)
	s.Theme = settings.Theme
	return s
}

func assertStagingEmpty(t *testing.T, env *testutil.Env) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(env.Root, "staging"))
	if err != nil {
		t.Fatalf("reading staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging has %d leftover entries", len(entries))
	}
}

func TestRestoreOrchestrator_Replace(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a full backup", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		_, srcPhotos := src.Seed(t, 2, 4)
		if err := src.DB.SaveSettings(ctx, &model.Settings{Theme: "dark"}); err != nil {
			t.Fatalf("SaveSettings() error = %v", err)
		}
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		old := dst.AddCategory(t, "old")
		oldPhoto := dst.AddPhoto(t, old.ID, 99)

		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{
			Strategy:          gallery.StrategyReplace,
			ValidateIntegrity: true,
			RestoreThumbnails: true,
			RestoreSettings:   true,
		})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if res.Phase != gallery.PhaseCompleted || res.RolledBack {
			t.Errorf("Phase = %v, RolledBack = %v", res.Phase, res.RolledBack)
		}
		if res.CategoriesRestored != 5 || res.PhotosRestored != 4 {
			t.Errorf("restored %d categories, %d photos; want 5, 4", res.CategoriesRestored, res.PhotosRestored)
		}
		if len(res.Errors) != 0 || len(res.Warnings) != 0 {
			t.Errorf("errors = %v, warnings = %v", res.Errors, res.Warnings)
		}
		if !res.SettingsRestored {
			t.Error("SettingsRestored = false")
		}

		got, want := captureState(t, dst), captureState(t, src)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("library after restore:\n got %+v\nwant %+v", got, want)
		}
		for _, p := range srcPhotos {
			if sum := fileSum(t, dst, p.Path); sum != p.Checksum {
				t.Errorf("%s checksum = %s, want %s", p.Path, sum, p.Checksum)
			}
		}
		if dst.Media.Exists(oldPhoto.Path) {
			t.Error("media of the replaced library was kept")
		}
		assertStagingEmpty(t, dst)
	})

	t.Run("rolls back when a write fails", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		src.Seed(t, 2, 4)
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		dst.Seed(t, 3, 10)
		before := captureState(t, dst)

		faulty := testutil.NewFaultyDatabase(dst.DB)
		faulty.FailOnce("CreatePhoto", 2, nil)

		res, err := newRestore(dst, faulty, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{
			Strategy:          gallery.StrategyReplace,
			RestoreThumbnails: true,
		})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("Restore() error = %v, want injected fault", err)
		}
		if !faulty.Fired("CreatePhoto") {
			t.Fatal("fault never fired")
		}
		if !res.RolledBack || res.Phase != gallery.PhaseRolledBack {
			t.Errorf("RolledBack = %v, Phase = %v", res.RolledBack, res.Phase)
		}
		if res.RollbackError != "" {
			t.Errorf("RollbackError = %s", res.RollbackError)
		}

		after := captureState(t, dst)
		if !reflect.DeepEqual(after, before) {
			t.Errorf("library after rollback:\n got %+v\nwant %+v", after, before)
		}
		assertStagingEmpty(t, dst)
	})

	t.Run("rolls back when clearing fails", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		src.Seed(t, 1, 2)
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		dst.Seed(t, 2, 3)
		before := captureState(t, dst)

		faulty := testutil.NewFaultyDatabase(dst.DB)
		faulty.FailOnce("ClearLibrary", 0, nil)

		res, err := newRestore(dst, faulty, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{Strategy: gallery.StrategyReplace})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("Restore() error = %v, want injected fault", err)
		}
		if !res.RolledBack {
			t.Error("RolledBack = false")
		}
		if after := captureState(t, dst); !reflect.DeepEqual(after, before) {
			t.Errorf("library after rollback:\n got %+v\nwant %+v", after, before)
		}
	})
}

func TestRestoreOrchestrator_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("renames colliding items", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		_, srcPhotos := src.Seed(t, 1, 2)
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		mine := dst.AddCategory(t, "category-1")
		minePhoto := dst.AddPhoto(t, mine.ID, 1)

		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{
			Strategy:          gallery.StrategyMerge,
			OnDuplicate:       gallery.ResolveRename,
			RestoreThumbnails: true,
		})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if res.Renamed != 5 || res.PhotosRestored != 2 {
			t.Errorf("Renamed = %d, PhotosRestored = %d; want 5, 2", res.Renamed, res.PhotosRestored)
		}

		family, err := dst.DB.FindCategoryByName(ctx, "family_1")
		if err != nil || family == nil {
			t.Fatalf("FindCategoryByName(family_1) = %v, %v", family, err)
		}
		if family.ID == "default-family" {
			t.Error("renamed category reused the live id")
		}
		renamedCat, _ := dst.DB.FindCategoryByName(ctx, "category-1_1")
		if renamedCat == nil {
			t.Fatal("category-1_1 not created")
		}

		if sum := fileSum(t, dst, minePhoto.Path); sum != minePhoto.Checksum {
			t.Error("live photo file was overwritten")
		}
		renamed, err := dst.DB.FindPhotoByPath(ctx, "photos/photo-001_1.jpg")
		if err != nil || renamed == nil {
			t.Fatalf("FindPhotoByPath(photo-001_1) = %v, %v", renamed, err)
		}
		if renamed.Checksum != srcPhotos[0].Checksum || renamed.CategoryID != renamedCat.ID {
			t.Errorf("renamed photo = %+v", renamed)
		}
		if !dst.Media.Exists(dst.Media.ThumbnailPath("photo-001_1.jpg")) {
			t.Error("thumbnail of renamed photo not restored")
		}
	})

	t.Run("skips colliding items", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		src.Seed(t, 1, 2)
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		mine := dst.AddCategory(t, "category-1")
		dst.AddPhoto(t, mine.ID, 1)

		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{
			OnDuplicate: gallery.ResolveAskCaller,
		})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if res.Skipped != 5 || res.PhotosRestored != 1 || res.CategoriesRestored != 0 {
			t.Errorf("result = %+v", res)
		}
		if len(res.Warnings) != 5 || !strings.Contains(res.Warnings[0], "no caller decision") {
			t.Errorf("warnings = %v", res.Warnings)
		}
		p, _ := dst.DB.FindPhotoByPath(ctx, "photos/photo-002.jpg")
		if p == nil || p.CategoryID != mine.ID {
			t.Errorf("photo-002 = %+v, want it filed under the live category-1", p)
		}
	})

	t.Run("replaces colliding photos", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		_, srcPhotos := src.Seed(t, 1, 1)
		archivePath := fullBackup(t, src, gallery.BackupOptions{})

		dst := testutil.NewEnv(t, "dst")
		mine := dst.AddCategory(t, "mine")
		minePhoto := dst.AddPhoto(t, mine.ID, 1)

		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{
			OnDuplicate: gallery.ResolveReplace,
		})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if res.PhotosRestored != 1 {
			t.Errorf("PhotosRestored = %d, want 1", res.PhotosRestored)
		}
		if p, _ := dst.DB.FindPhotoByID(ctx, minePhoto.ID); p != nil {
			t.Error("replaced photo is still live")
		}
		if sum := fileSum(t, dst, minePhoto.Path); sum != srcPhotos[0].Checksum {
			t.Errorf("file checksum = %s, want the archived %s", sum, srcPhotos[0].Checksum)
		}
	})

	t.Run("applies deletions from an incremental backup", func(t *testing.T) {
		src := testutil.NewEnv(t, "src")
		cats, photos := src.Seed(t, 1, 3)
		b := newBackup(src)
		dir := t.TempDir()
		full, err := b.CreateFull(ctx, filepath.Join(dir, "full.zip"), gallery.BackupOptions{})
		if err != nil {
			t.Fatalf("CreateFull() error = %v", err)
		}

		dst := testutil.NewEnv(t, "dst")
		restore := newRestore(dst, dst.DB, archive.DefaultLimits())
		if _, err := restore.Restore(ctx, full.Path, gallery.RestoreOptions{}); err != nil {
			t.Fatalf("Restore(full) error = %v", err)
		}

		src.Clock.Tick()
		added := src.AddPhoto(t, cats[0].ID, 7)
		if err := src.DB.DeletePhoto(ctx, photos[0].ID); err != nil {
			t.Fatalf("DeletePhoto() error = %v", err)
		}
		src.Clock.Tick()
		incr, err := b.CreateIncremental(ctx, full.BackupID, filepath.Join(dir, "incr.zip"), gallery.BackupOptions{})
		if err != nil {
			t.Fatalf("CreateIncremental() error = %v", err)
		}

		res, err := restore.Restore(ctx, incr.Path, gallery.RestoreOptions{})
		if err != nil {
			t.Fatalf("Restore(incremental) error = %v", err)
		}
		if res.DeletionsApplied != 1 || res.PhotosRestored != 1 {
			t.Errorf("DeletionsApplied = %d, PhotosRestored = %d; want 1, 1", res.DeletionsApplied, res.PhotosRestored)
		}
		if p, _ := dst.DB.FindPhotoByID(ctx, photos[0].ID); p != nil {
			t.Error("deleted photo is still live")
		}
		if p, _ := dst.DB.FindPhotoByID(ctx, added.ID); p == nil || p.CategoryID != cats[0].ID {
			t.Errorf("added photo = %+v", p)
		}
	})

	t.Run("leaves out photos whose media is missing", func(t *testing.T) {
		dir := t.TempDir()
		data := []byte("jpeg bytes")
		m := model.Manifest{
			Version:    model.ManifestVersion,
			Kind:       model.BackupFull,
			Categories: []model.Category{{ID: "c1", Name: "trip", DisplayName: "Trip", Color: "#123456"}},
			Photos: []model.Photo{
				{ID: "p1", Name: "a.jpg", Path: "photos/a.jpg", CategoryID: "c1", Source: model.SourceImported},
				{ID: "p2", Name: "b.jpg", Path: "photos/b.jpg", CategoryID: "c1", Source: model.SourceImported},
			},
			PhotoFiles: []model.FileEntry{
				{PhotoID: "p1", FileName: "a.jpg", Checksum: strings.Repeat("0", 64)},
				{PhotoID: "p2", FileName: "b.jpg"},
			},
		}
		meta, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("encoding manifest: %v", err)
		}
		archivePath := testutil.WriteZip(t, dir, "partial.zip", []testutil.ZipEntry{
			{Name: model.MetadataEntry, Data: meta},
			{Name: "photos/a.jpg", Data: data},
		})

		dst := testutil.NewEnv(t, "dst")
		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{ValidateIntegrity: true})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if res.PhotosRestored != 1 || len(res.Errors) != 1 {
			t.Errorf("PhotosRestored = %d, errors = %v", res.PhotosRestored, res.Errors)
		}
		if !strings.Contains(res.Errors[0], "p2") {
			t.Errorf("error %q does not name p2", res.Errors[0])
		}
		if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "a.jpg") {
			t.Errorf("warnings = %v, want a checksum mismatch for a.jpg", res.Warnings)
		}
		if p, _ := dst.DB.FindPhotoByID(ctx, "p2"); p != nil {
			t.Error("photo without media was restored")
		}
	})
}

func TestRestoreOrchestrator_DryRun(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewEnv(t, "src")
	src.Seed(t, 1, 2)
	archivePath := fullBackup(t, src, gallery.BackupOptions{})

	dst := testutil.NewEnv(t, "dst")
	mine := dst.AddCategory(t, "category-1")
	dst.AddPhoto(t, mine.ID, 1)
	before := captureState(t, dst)
	restore := newRestore(dst, dst.DB, archive.DefaultLimits())

	tests := []struct {
		name       string
		opts       gallery.RestoreOptions
		categories gallery.PlanCounts
		photos     gallery.PlanCounts
		renames    int
	}{
		{
			name:       "replace",
			opts:       gallery.RestoreOptions{Strategy: gallery.StrategyReplace},
			categories: gallery.PlanCounts{Create: 1, Replace: 3},
			photos:     gallery.PlanCounts{Create: 2},
		},
		{
			name:       "merge with skip",
			opts:       gallery.RestoreOptions{Strategy: gallery.StrategyMerge},
			categories: gallery.PlanCounts{Skip: 4},
			photos:     gallery.PlanCounts{Create: 1, Skip: 1},
		},
		{
			name:       "merge with rename",
			opts:       gallery.RestoreOptions{Strategy: gallery.StrategyMerge, OnDuplicate: gallery.ResolveRename},
			categories: gallery.PlanCounts{Rename: 4},
			photos:     gallery.PlanCounts{Create: 1, Rename: 1},
			renames:    5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.DryRun = true
			res, err := restore.Restore(ctx, archivePath, tt.opts)
			if err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if !res.DryRun || res.Plan == nil {
				t.Fatalf("DryRun = %v, Plan = %v", res.DryRun, res.Plan)
			}
			if res.Plan.Categories != tt.categories {
				t.Errorf("categories = %+v, want %+v", res.Plan.Categories, tt.categories)
			}
			if res.Plan.Photos != tt.photos {
				t.Errorf("photos = %+v, want %+v", res.Plan.Photos, tt.photos)
			}
			if len(res.Plan.Renames) != tt.renames {
				t.Errorf("renames = %v", res.Plan.Renames)
			}
			if after := captureState(t, dst); !reflect.DeepEqual(after, before) {
				t.Errorf("dry run changed the library:\n got %+v\nwant %+v", after, before)
			}
		})
	}
	assertStagingEmpty(t, dst)
}

func TestRestoreOrchestrator_Encrypted(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewEnv(t, "src")
	src.Seed(t, 1, 2)
	archivePath := fullBackup(t, src, gallery.BackupOptions{Encrypt: true, Credential: "1234"})

	t.Run("requires a credential", func(t *testing.T) {
		dst := testutil.NewEnv(t, "dst")
		_, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{})
		if !errors.Is(err, apperrors.ErrCredentialRequired) {
			t.Fatalf("Restore() error = %v, want ErrCredentialRequired", err)
		}
	})

	t.Run("points at the device lock", func(t *testing.T) {
		dst := testutil.NewEnv(t, "dst")
		if err := dst.Credentials.Set("1234"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		_, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{})
		if !errors.Is(err, apperrors.ErrCredentialRequired) || !strings.Contains(err.Error(), "device lock") {
			t.Fatalf("Restore() error = %v, want a hint at the device lock", err)
		}
	})

	t.Run("rejects a wrong credential", func(t *testing.T) {
		dst := testutil.NewEnv(t, "dst")
		before := captureState(t, dst)
		_, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{Credential: "0000"})
		if !errors.Is(err, apperrors.ErrBadCredential) {
			t.Fatalf("Restore() error = %v, want ErrBadCredential", err)
		}
		if after := captureState(t, dst); !reflect.DeepEqual(after, before) {
			t.Error("library changed after a failed decryption")
		}
	})

	t.Run("restores with the right credential", func(t *testing.T) {
		dst := testutil.NewEnv(t, "dst")
		res, err := newRestore(dst, dst.DB, archive.DefaultLimits()).Restore(ctx, archivePath, gallery.RestoreOptions{Credential: "1234"})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if !res.Encrypted || res.PhotosRestored != 2 {
			t.Errorf("Encrypted = %v, PhotosRestored = %d", res.Encrypted, res.PhotosRestored)
		}
	})
}

func TestRestoreOrchestrator_HostileArchives(t *testing.T) {
	ctx := context.Background()
	limits := archive.Limits{MaxEntries: 50, MaxTotalSize: 1 << 30, MaxCompressionRatio: 100}

	tests := []struct {
		name    string
		archive func(t *testing.T, dir string) string
		kind    apperrors.SecurityKind
	}{
		{name: "zip bomb", archive: testutil.ZipBomb, kind: apperrors.SuspiciousCompressionRatio},
		{name: "path traversal", archive: testutil.TraversalZip, kind: apperrors.PathTraversal},
		{
			name:    "entry flood",
			archive: func(t *testing.T, dir string) string { return testutil.EntryFloodZip(t, dir, 60) },
			kind:    apperrors.TooManyEntries,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := testutil.NewEnv(t, "dst")
			dst.Seed(t, 1, 2)
			before := captureState(t, dst)

			res, err := newRestore(dst, dst.DB, limits).Restore(ctx, tt.archive(t, t.TempDir()), gallery.RestoreOptions{Strategy: gallery.StrategyReplace})
			if !errors.Is(err, &apperrors.SecurityError{Kind: tt.kind}) {
				t.Fatalf("Restore() error = %v, want %v", err, tt.kind)
			}
			if res.Phase != gallery.PhaseValidating {
				t.Errorf("Phase = %v, want validating", res.Phase)
			}
			if after := captureState(t, dst); !reflect.DeepEqual(after, before) {
				t.Error("library changed after a rejected archive")
			}
			assertStagingEmpty(t, dst)
		})
	}

	t.Run("not a zip", func(t *testing.T) {
		dst := testutil.NewEnv(t, "dst")
		bogus := testutil.WriteFile(t, t.TempDir(), "bogus.zip", []byte("definitely not a zip"))
		_, err := newRestore(dst, dst.DB, limits).Restore(ctx, bogus, gallery.RestoreOptions{})
		if !apperrors.IsValidation(err) {
			t.Fatalf("Restore() error = %v, want ValidationError", err)
		}
	})
}

func TestRestoreOrchestrator_Start(t *testing.T) {
	src := testutil.NewEnv(t, "src")
	src.Seed(t, 2, 4)
	archivePath := fullBackup(t, src, gallery.BackupOptions{})

	dst := testutil.NewEnv(t, "dst")
	job := newRestore(dst, dst.DB, archive.DefaultLimits()).Start(context.Background(), archivePath, gallery.RestoreOptions{Strategy: gallery.StrategyReplace})

	var updates []gallery.Progress
	for p := range job.Progress() {
		updates = append(updates, p)
	}
	res, err := job.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.Phase != gallery.PhaseCompleted {
		t.Errorf("Phase = %v", res.Phase)
	}
	if len(updates) == 0 {
		t.Fatal("no progress reported")
	}
	last := updates[len(updates)-1]
	if last.Phase != gallery.PhaseCompleted || last.ItemsProcessed != last.ItemsTotal || last.ItemsTotal != 9 {
		t.Errorf("last progress = %+v", last)
	}
	if updates[0].Phase != gallery.PhaseValidating {
		t.Errorf("first progress phase = %v", updates[0].Phase)
	}
}
