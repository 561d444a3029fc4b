package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"photovault/internal/archive"
	"photovault/internal/encryption"
	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// BackupOptions controls what goes into an archive and how it is sealed.
type BackupOptions struct {
	Encrypt bool
	// Credential seals the manifest. When empty and UseDeviceLock is set,
	// the device credential is used instead.
	Credential        string
	UseDeviceLock     bool
	IncludeThumbnails bool
	IncludeSettings   bool
}

// BackupStats is the outcome of a backup. On failure Success is false and
// ErrorMessage repeats the returned error.
type BackupStats struct {
	BackupID      string
	Kind          model.BackupKind
	Path          string
	CategoryCount int
	PhotoCount    int
	DeletedCount  int
	FileCount     int
	Bytes         int64
	Encrypted     bool
	Success       bool
	ErrorMessage  string
}

// BackupOrchestrator writes the gallery into archive files.
type BackupOrchestrator struct {
	database    Database
	media       MediaStore
	ops         FileOps
	credentials CredentialStore
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	iterations  int
}

// NewBackupOrchestrator creates a BackupOrchestrator. credentials may be nil
// when no device lock is configured. iterations is the PBKDF2 work factor
// for sealed manifests; zero selects the default.
func NewBackupOrchestrator(database Database, media MediaStore, ops FileOps, credentials CredentialStore, logger Logger, clock Clock, idgen IDGenerator, iterations int) *BackupOrchestrator {
	if iterations <= 0 {
		iterations = encryption.DefaultIterations
	}
	return &BackupOrchestrator{
		database:    database,
		media:       media,
		ops:         ops,
		credentials: credentials,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		iterations:  iterations,
	}
}

// CreateFull writes every live category and photo to dest.
func (b *BackupOrchestrator) CreateFull(ctx context.Context, dest string, opts BackupOptions) (*BackupStats, error) {
	return b.create(ctx, model.BackupFull, nil, dest, opts)
}

// CreateIncremental writes the categories and photos changed since the
// backup sinceBackupID was taken, plus the tombstones recorded after it.
func (b *BackupOrchestrator) CreateIncremental(ctx context.Context, sinceBackupID, dest string, opts BackupOptions) (*BackupStats, error) {
	since, err := b.database.FindBackup(ctx, sinceBackupID)
	if err != nil {
		return nil, fmt.Errorf("finding reference backup: %w", err)
	}
	if since == nil {
		return nil, fmt.Errorf("reference backup %s: %w", sinceBackupID, apperrors.ErrNotFound)
	}
	return b.create(ctx, model.BackupIncremental, since, dest, opts)
}

func (b *BackupOrchestrator) create(ctx context.Context, kind model.BackupKind, since *model.Backup, dest string, opts BackupOptions) (*BackupStats, error) {
	stats := &BackupStats{BackupID: b.idgen.New(), Kind: kind, Path: dest}
	fail := func(err error) (*BackupStats, error) {
		stats.ErrorMessage = err.Error()
		b.logger.Error("backup failed", "backup", stats.BackupID, "error", err)
		return stats, err
	}

	dest, err := filepath.Abs(dest)
	if err != nil {
		return fail(fmt.Errorf("resolving destination: %w", err))
	}
	stats.Path = dest

	credential, err := b.credentialFor(opts)
	if err != nil {
		return fail(err)
	}

	b.logger.Info("backup started", "backup", stats.BackupID, "kind", kind, "dest", dest)

	manifest, err := b.snapshot(ctx, stats.BackupID, kind, since, opts)
	if err != nil {
		return fail(err)
	}

	if err := b.ops.EnsureDir(filepath.Dir(dest)); err != nil {
		return fail(fmt.Errorf("creating destination directory: %w", err))
	}
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+stats.BackupID+".partial")
	w, err := archive.Create(tmp)
	if err != nil {
		return fail(err)
	}

	if err := b.writeArchive(ctx, w, manifest, credential, opts, stats); err != nil {
		w.Abort()
		return fail(err)
	}
	if err := w.Close(); err != nil {
		w.Abort()
		return fail(err)
	}
	if err := b.ops.AtomicMove(tmp, dest); err != nil {
		b.ops.SafeDelete(tmp)
		return fail(fmt.Errorf("moving archive into place: %w", err))
	}

	stats.CategoryCount = len(manifest.Categories)
	stats.PhotoCount = len(manifest.Photos)
	stats.DeletedCount = len(manifest.DeletedItems)
	stats.Encrypted = credential != ""

	record := &model.Backup{
		ID:            stats.BackupID,
		Kind:          kind,
		Path:          dest,
		CreatedAt:     manifest.CreatedAt,
		Encrypted:     stats.Encrypted,
		CategoryCount: stats.CategoryCount,
		PhotoCount:    stats.PhotoCount,
	}
	if since != nil {
		record.SinceBackupID = since.ID
	}
	if err := b.database.RecordBackup(ctx, record); err != nil {
		return fail(fmt.Errorf("recording backup: %w", err))
	}

	stats.Success = true
	b.logger.Info("backup completed",
		"backup", stats.BackupID,
		"categories", stats.CategoryCount,
		"photos", stats.PhotoCount,
		"deleted", stats.DeletedCount,
		"encrypted", stats.Encrypted)
	return stats, nil
}

func (b *BackupOrchestrator) credentialFor(opts BackupOptions) (string, error) {
	if !opts.Encrypt {
		return "", nil
	}
	if opts.Credential != "" {
		return opts.Credential, nil
	}
	if opts.UseDeviceLock && b.credentials != nil && b.credentials.HasDeviceLock() {
		credential, err := b.credentials.DeviceCredential()
		if err != nil {
			return "", fmt.Errorf("reading device credential: %w", err)
		}
		return credential, nil
	}
	return "", apperrors.ErrCredentialRequired
}

// snapshot reads the records that go into the manifest. The manifest time
// is taken before reading, so anything changed during the backup is picked
// up by the next incremental one.
func (b *BackupOrchestrator) snapshot(ctx context.Context, id string, kind model.BackupKind, since *model.Backup, opts BackupOptions) (*model.Manifest, error) {
	m := &model.Manifest{
		Version:   model.ManifestVersion,
		BackupID:  id,
		Kind:      kind,
		CreatedAt: b.clock.Now(),
	}

	var (
		cats   []*model.Category
		photos []*model.Photo
		err    error
	)
	if since == nil {
		if cats, err = b.database.ListCategories(ctx); err != nil {
			return nil, fmt.Errorf("listing categories: %w", err)
		}
		if photos, err = b.database.ListPhotos(ctx, ""); err != nil {
			return nil, fmt.Errorf("listing photos: %w", err)
		}
	} else {
		t := since.CreatedAt
		m.Since = &t
		if cats, err = b.database.CategoriesChangedSince(ctx, t); err != nil {
			return nil, fmt.Errorf("listing changed categories: %w", err)
		}
		if photos, err = b.database.PhotosChangedSince(ctx, t); err != nil {
			return nil, fmt.Errorf("listing changed photos: %w", err)
		}
		dels, err := b.database.DeletionsSince(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("listing deletions: %w", err)
		}
		m.DeletedItems = make([]model.Deletion, 0, len(dels))
		for _, d := range dels {
			m.DeletedItems = append(m.DeletedItems, *d)
		}
	}

	m.Categories = make([]model.Category, 0, len(cats))
	for _, c := range cats {
		m.Categories = append(m.Categories, *c)
	}
	m.Photos = make([]model.Photo, 0, len(photos))
	for _, p := range photos {
		m.Photos = append(m.Photos, *p)
	}

	if opts.IncludeSettings {
		s, err := b.database.GetSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
		m.Settings = s
	}
	return m, nil
}

// writeArchive copies media into w, filling in the manifest's file entries
// as each file is hashed, then writes the (optionally sealed) manifest.
func (b *BackupOrchestrator) writeArchive(ctx context.Context, w *archive.Writer, m *model.Manifest, credential string, opts BackupOptions, stats *BackupStats) error {
	m.PhotoFiles = make([]model.FileEntry, 0, len(m.Photos))
	added := make(map[string]string)
	for _, p := range m.Photos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.IsBundled() {
			continue
		}

		fileName := path.Base(p.Path)
		if sum, ok := added[fileName]; ok {
			m.PhotoFiles = append(m.PhotoFiles, model.FileEntry{PhotoID: p.ID, FileName: fileName, Checksum: sum})
			continue
		}
		sum, n, err := b.addFile(w, p.Path, model.PhotoEntryName(fileName))
		if err != nil {
			return fmt.Errorf("photo %s: %w", p.ID, err)
		}
		if p.Checksum != "" && p.Checksum != sum {
			b.logger.Warn("stored photo differs from its recorded checksum", "photo", p.ID, "path", p.Path)
		}
		added[fileName] = sum
		m.PhotoFiles = append(m.PhotoFiles, model.FileEntry{PhotoID: p.ID, FileName: fileName, Checksum: sum})
		stats.FileCount++
		stats.Bytes += n

		thumb := b.media.ThumbnailPath(fileName)
		if opts.IncludeThumbnails && b.media.Exists(thumb) {
			_, n, err := b.addFile(w, thumb, model.ThumbnailEntryName(fileName))
			if err != nil {
				return fmt.Errorf("thumbnail of photo %s: %w", p.ID, err)
			}
			stats.FileCount++
			stats.Bytes += n
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if credential != "" {
		env, err := encryption.Seal(data, credential, b.iterations)
		if err != nil {
			return fmt.Errorf("sealing manifest: %w", err)
		}
		if data, err = env.Marshal(); err != nil {
			return fmt.Errorf("encoding envelope: %w", err)
		}
	}
	return w.WriteMetadata(data)
}

func (b *BackupOrchestrator) addFile(w *archive.Writer, rel, entry string) (string, int64, error) {
	rc, err := b.media.Open(rel)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", 0, &apperrors.IntegrityError{File: rel, Missing: true}
		}
		return "", 0, err
	}
	defer rc.Close()
	return w.AddFile(entry, rc)
}
