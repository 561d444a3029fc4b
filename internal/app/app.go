package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"photovault/internal/archive"
	"photovault/internal/breaker"
	"photovault/internal/config"
	"photovault/internal/credential"
	"photovault/internal/database"
	"photovault/internal/database/migrations"
	apperrors "photovault/internal/errors"
	"photovault/internal/fs"
	"photovault/internal/gallery"
	"photovault/internal/model"
	"photovault/internal/staging"
	"photovault/internal/vault"
)

// importBreaker names the breaker guarding photo imports.
const importBreaker = "import"

// App is the application layer between the CLI and the gallery services.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw arguments, and snapshots the database on Close after a
// mutating command.
type App struct {
	cfg         *config.Config
	db          *database.SQLiteDatabase
	media       *vault.FileSystemVault
	staging     *staging.FileSystemStagingArea
	credentials gallery.CredentialStore
	finder      *fs.OSSourceFinder
	breakers    *breaker.Registry
	library     *gallery.Library
	importer    *gallery.ImportPipeline
	backups     *gallery.BackupOrchestrator
	restorer    *gallery.RestoreOrchestrator
	limits      archive.Limits
	op          *Operation
	logger      *zap.SugaredLogger
	logFile     *os.File
}

// Stats combines the library counts with the state of the import machinery.
type Stats struct {
	Library  *gallery.LibraryStats
	Import   gallery.ImportStatistics
	Breakers []breaker.Snapshot
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Import", "Restore").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	op := NewOperation(operation, time.Now())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &zapAdapter{s: logger}

	a, err := wire(cfg, op, log)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logger = logger
	a.logFile = logFile
	logger.Debugw("operation started", "operation", op.Name)
	return a, nil
}

// wire builds the stores and services. On error everything opened so far is
// closed again.
func wire(cfg *config.Config, op *Operation, log gallery.Logger) (*App, error) {
	ops := fs.NewOSFileOps()

	media, err := vault.NewVaultFromConfig(cfg.Library, ops)
	if err != nil {
		return nil, fmt.Errorf("creating media library: %w", err)
	}

	sa, err := staging.NewStagingAreaFromConfig(cfg.Staging, ops)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}
	stale, err := sa.Sweep()
	if err != nil {
		return nil, fmt.Errorf("sweeping staging area: %w", err)
	}
	for _, id := range stale {
		log.Warn("removed workspace of an unfinished restore", "workspace", id)
	}

	creds, err := credential.NewStoreFromConfig(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}

	clock := gallery.RealClock{}
	ids := gallery.UUIDGenerator{}
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID, clock, ids)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking database schema: %w", err)
	}

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeoutDuration(),
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	})
	limits := archive.Limits{
		MaxEntries:          cfg.Archive.MaxEntries,
		MaxTotalSize:        cfg.Archive.MaxTotalSize,
		MaxCompressionRatio: cfg.Archive.MaxCompressionRatio,
	}

	return &App{
		cfg:         cfg,
		db:          db,
		media:       media,
		staging:     sa,
		credentials: creds,
		finder:      fs.NewOSSourceFinder(cfg.Import.Ignore),
		breakers:    breakers,
		library:     gallery.NewLibrary(db, media, log, clock),
		importer: gallery.NewImportPipeline(db, media, ops, breakers.Get(importBreaker), log, ids, gallery.ImportOptions{
			MaxBatchSize:  cfg.Import.MaxBatchSize,
			Workers:       cfg.Import.Workers,
			MaxDimension:  cfg.Import.MaxDimension,
			Quality:       cfg.Import.Quality,
			ThumbnailSize: cfg.Import.ThumbnailSize,
			MaxPixels:     cfg.Import.MaxMegapixels * 1_000_000,
		}),
		backups:  gallery.NewBackupOrchestrator(db, media, ops, creds, log, clock, ids, cfg.Encryption.Iterations),
		restorer: gallery.NewRestoreOrchestrator(db, media, ops, sa, creds, log, ids, limits),
		limits:   limits,
		op:       op,
	}, nil
}

// Operation returns the operation this App was created for.
func (a *App) Operation() *Operation { return a.op }

// Import discovers the photos named by paths (files or directories) and
// imports them. category is a category name or id; empty means "general".
func (a *App) Import(ctx context.Context, paths []string, category string, recursive bool) ([]gallery.ImportResult, gallery.ImportSummary, error) {
	a.op.MarkMutating()

	var opts gallery.ImportOptions
	if category != "" {
		c, err := a.library.FindCategory(ctx, category)
		if err != nil {
			return nil, gallery.ImportSummary{}, a.op.Finish(err)
		}
		opts.CategoryID = c.ID
	}

	sources, err := a.finder.Discover(paths, recursive)
	if err != nil {
		return nil, gallery.ImportSummary{}, a.op.Finish(fmt.Errorf("discovering photos: %w", err))
	}
	results, summary, err := a.importer.ImportAll(ctx, sources, opts)
	return results, summary, a.op.Finish(err)
}

// AddCategory creates a category. An empty color takes the default.
func (a *App) AddCategory(ctx context.Context, name, color string) (*model.Category, error) {
	a.op.MarkMutating()
	c, err := a.library.AddCategory(ctx, name, color)
	return c, a.op.Finish(err)
}

// ListCategories returns the live categories in display order.
func (a *App) ListCategories(ctx context.Context) ([]*model.Category, error) {
	return a.library.ListCategories(ctx)
}

// RenameCategory renames the category given by name or id.
func (a *App) RenameCategory(ctx context.Context, nameOrID, newName string) (*model.Category, error) {
	a.op.MarkMutating()
	c, err := a.library.RenameCategory(ctx, nameOrID, newName)
	return c, a.op.Finish(err)
}

// DeleteCategory soft-deletes the category given by name or id.
func (a *App) DeleteCategory(ctx context.Context, nameOrID string) error {
	a.op.MarkMutating()
	return a.op.Finish(a.library.DeleteCategory(ctx, nameOrID))
}

// ListPhotos returns live photos, optionally limited to one category.
func (a *App) ListPhotos(ctx context.Context, category string) ([]*model.Photo, error) {
	return a.library.ListPhotos(ctx, category)
}

// DeletePhoto soft-deletes a photo.
func (a *App) DeletePhoto(ctx context.Context, id string) error {
	a.op.MarkMutating()
	return a.op.Finish(a.library.DeletePhoto(ctx, id))
}

// SetTheme stores the gallery theme.
func (a *App) SetTheme(ctx context.Context, theme string) error {
	a.op.MarkMutating()
	return a.op.Finish(a.library.SetTheme(ctx, theme))
}

// Backup writes an archive to dest. When since is non-empty the archive is
// incremental against that backup id.
func (a *App) Backup(ctx context.Context, dest, since string, opts gallery.BackupOptions) (*gallery.BackupStats, error) {
	a.op.MarkMutating()
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, a.op.Finish(fmt.Errorf("resolving destination: %w", err))
	}
	if since == "" {
		stats, err := a.backups.CreateFull(ctx, absDest, opts)
		return stats, a.op.Finish(err)
	}
	stats, err := a.backups.CreateIncremental(ctx, since, absDest, opts)
	return stats, a.op.Finish(err)
}

// Backups returns the backup log, newest first.
func (a *App) Backups(ctx context.Context) ([]*model.Backup, error) {
	return a.db.ListBackups(ctx)
}

// Validate runs the archive security checks on path and describes what it
// holds, without extracting anything.
func (a *App) Validate(path string) (*archive.Structure, error) {
	return archive.ValidateStructure(path, a.limits)
}

// Restore applies the archive at path to the library. progress, when not
// nil, receives every progress update.
func (a *App) Restore(ctx context.Context, path string, opts gallery.RestoreOptions, progress func(gallery.Progress)) (*gallery.RestoreResult, error) {
	if !opts.DryRun {
		a.op.MarkMutating()
	}
	job := a.restorer.Start(ctx, path, opts)
	for p := range job.Progress() {
		if progress != nil {
			progress(p)
		}
	}
	res, err := job.Wait()
	return res, a.op.Finish(err)
}

// Purge removes tombstoned items past their retention and their media.
func (a *App) Purge(ctx context.Context) (*gallery.PurgeStats, error) {
	a.op.MarkMutating()
	stats, err := a.library.Purge(ctx)
	return stats, a.op.Finish(err)
}

// Stats reports library counts, import counters and breaker states.
func (a *App) Stats(ctx context.Context) (*Stats, error) {
	lib, err := a.library.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Library:  lib,
		Import:   a.importer.Statistics(),
		Breakers: a.breakers.Snapshots(),
	}, nil
}

// SetDeviceLock stores a new device unlock credential.
func (a *App) SetDeviceLock(pin string) error {
	if pin == "" {
		return apperrors.ErrCredentialRequired
	}
	return a.op.Finish(a.credentials.Set(pin))
}

// ClearDeviceLock removes the device unlock credential.
func (a *App) ClearDeviceLock() error {
	return a.op.Finish(a.credentials.Clear())
}

// HasDeviceLock reports whether a device unlock credential is set.
func (a *App) HasDeviceLock() bool {
	return a.credentials.HasDeviceLock()
}

// BackupDatabase copies the database to dest.
func (a *App) BackupDatabase(dest string) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	return a.db.BackupTo(absDest)
}

// snapshotDir is where mutating operations leave database snapshots.
func (a *App) snapshotDir() string {
	return filepath.Join(a.cfg.Database.DataDir, "snapshots")
}

// snapshot copies the database after a mutating operation and prunes old
// copies.
func (a *App) snapshot() error {
	if a.db.Path() == ":memory:" {
		return nil
	}
	dir := a.snapshotDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := a.db.BackupTo(filepath.Join(dir, a.op.SnapshotName(a.cfg.DeviceID))); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	removed, err := pruneSnapshots(dir, a.cfg.DeviceID, keepSnapshots)
	if len(removed) > 0 {
		a.logger.Debugw("pruned database snapshots", "count", len(removed))
	}
	return err
}

// Close finalizes the operation and closes all resources.
// Mutating operations snapshot the database first.
func (a *App) Close() error {
	var err error
	if a.op.Mutating() {
		err = multierr.Append(err, a.snapshot())
	}
	if cerr := a.db.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("closing database: %w", cerr))
	}

	a.logger.Infow("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond).String(),
	)
	if err != nil {
		a.logger.Errorw("closing app", "error", err)
	}
	_ = a.logger.Sync()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

// MigrateDatabase applies pending schema migrations to the configured
// database and returns the schema status before and after.
func MigrateDatabase(cfg *config.Config) (before, after migrations.Status, err error) {
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir != "" {
		if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
			return before, after, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID, nil, nil)
	if err != nil {
		return before, after, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if before, err = db.MigrationStatus(); err != nil {
		return before, after, err
	}
	if err := db.MigrateUp(); err != nil {
		return before, after, err
	}
	after, err = db.MigrationStatus()
	return before, after, err
}

// DatabaseStatus returns the schema status of the configured database.
func DatabaseStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID, nil, nil)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	return db.MigrationStatus()
}
