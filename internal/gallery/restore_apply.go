package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// snapshot is the rollback material of a Replace restore.
type snapshot struct {
	categories []*model.Category
	photos     []*model.Photo
	settings   *model.Settings
}

// fileChange records a write into the media store. parked is where the file
// it displaced went, empty when nothing was there.
type fileChange struct {
	rel    string
	parked string
}

// applier carries the state of one restore through the apply and rollback
// steps.
type applier struct {
	*RestoreOrchestrator
	ctx      context.Context
	ws       Workspace
	manifest *model.Manifest
	missing  map[string]bool
	opts     RestoreOptions
	res      *RestoreResult
	report   func(Progress)

	snap       *snapshot
	changes    []fileChange
	categories map[string]string // archive category id → live category id
	total      int
	processed  int
}

func (a *applier) run() (*RestoreResult, error) {
	if a.opts.Strategy == StrategyReplace {
		snap, err := a.takeSnapshot()
		if err != nil {
			return a.res, err
		}
		a.snap = snap
		a.res.Phase = PhaseSnapshotCreated
		a.progress("snapshot created")
	}

	a.res.Phase = PhaseApplying
	if err := a.apply(); err != nil {
		if a.snap == nil {
			a.logger.Error("restore failed", "error", err, "photos_restored", a.res.PhotosRestored)
			return a.res, err
		}
		a.rollback(err)
		return a.res, err
	}

	if a.snap != nil {
		a.removeReplacedMedia()
	}
	a.res.Phase = PhaseCompleted
	a.progress("completed")
	a.logger.Info("restore completed",
		"categories", a.res.CategoriesRestored,
		"photos", a.res.PhotosRestored,
		"skipped", a.res.Skipped,
		"renamed", a.res.Renamed,
		"replaced", a.res.Replaced,
		"deletions", a.res.DeletionsApplied,
		"errors", len(a.res.Errors))
	return a.res, nil
}

func (a *applier) progress(op string) {
	a.report(Progress{
		Phase:          a.res.Phase,
		ItemsTotal:     a.total,
		ItemsProcessed: a.processed,
		Operation:      op,
		Errors:         append([]string(nil), a.res.Errors...),
	})
}

func (a *applier) takeSnapshot() (*snapshot, error) {
	cats, err := a.database.ListCategories(a.ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing categories: %w", err)
	}
	photos, err := a.database.ListPhotos(a.ctx, "")
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing photos: %w", err)
	}
	settings, err := a.database.GetSettings(a.ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading settings: %w", err)
	}
	a.logger.Debug("snapshot taken", "categories", len(cats), "photos", len(photos))
	return &snapshot{categories: cats, photos: photos, settings: settings}, nil
}

func (a *applier) apply() error {
	m := a.manifest
	a.total = len(m.Categories) + len(m.Photos) + len(m.DeletedItems)
	a.categories = make(map[string]string, len(m.Categories))

	if a.snap != nil {
		if err := a.database.ClearLibrary(a.ctx); err != nil {
			return fmt.Errorf("clearing library: %w", err)
		}
		a.progress("library cleared")
	}

	for i := range m.Categories {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		c := m.Categories[i]
		if err := a.restoreCategory(&c); err != nil {
			return fmt.Errorf("category %s: %w", c.Name, err)
		}
		a.processed++
		a.progress("category " + c.Name)
	}

	for i := range m.Photos {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		p := m.Photos[i]
		if err := a.restorePhoto(&p); err != nil {
			return fmt.Errorf("photo %s: %w", p.ID, err)
		}
		a.processed++
		a.progress("photo " + p.Name)
	}

	for _, d := range m.DeletedItems {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		if err := a.applyDeletion(d); err != nil {
			return fmt.Errorf("deletion of %s %s: %w", d.ItemType, d.ItemID, err)
		}
		a.processed++
	}

	if a.opts.RestoreSettings && m.Settings != nil && m.Settings.Theme != "" {
		if err := a.database.SaveSettings(a.ctx, &model.Settings{Theme: m.Settings.Theme}); err != nil {
			return fmt.Errorf("restoring settings: %w", err)
		}
		a.res.SettingsRestored = true
	}
	return nil
}

// collides returns the live category an archive category clashes with,
// matching by name first and then by id.
func (a *applier) collides(c *model.Category) (*model.Category, error) {
	existing, err := a.database.FindCategoryByName(a.ctx, c.Name)
	if err != nil || existing != nil {
		return existing, err
	}
	return a.database.FindCategoryByID(a.ctx, c.ID)
}

func (a *applier) restoreCategory(c *model.Category) error {
	existing, err := a.collides(c)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := a.database.CreateCategory(a.ctx, c); err != nil {
			return err
		}
		a.categories[c.ID] = c.ID
		a.res.CategoriesRestored++
		return nil
	}
	if a.snap != nil && existing.ID == c.ID {
		// A default category that survived the clear is the same record.
		if err := a.updateInPlace(existing, c); err != nil {
			return err
		}
		a.res.CategoriesRestored++
		return nil
	}

	switch a.opts.OnDuplicate {
	case ResolveReplace:
		return a.replaceCategory(existing, c)

	case ResolveRename:
		name, err := a.freeCategoryName(c.Name)
		if err != nil {
			return err
		}
		renamed := *c
		renamed.Name = name
		renamed.DisplayName = name
		if existing.ID == c.ID {
			renamed.ID = a.idgen.New()
		}
		if err := a.database.CreateCategory(a.ctx, &renamed); err != nil {
			return err
		}
		a.categories[c.ID] = renamed.ID
		a.res.CategoriesRestored++
		a.res.Renamed++
		a.res.warn("category %q renamed to %q", c.Name, name)
		return nil

	default:
		a.categories[c.ID] = existing.ID
		a.res.Skipped++
		if a.opts.OnDuplicate == ResolveAskCaller {
			a.res.warn("category %q already exists; no caller decision available, skipped", c.Name)
		} else {
			a.res.warn("category %q already exists, skipped", c.Name)
		}
		return nil
	}
}

// replaceCategory swaps a live category for the archived one. Default
// categories, and categories that cannot be deleted because they are the
// last one, are updated in place and keep their id.
func (a *applier) replaceCategory(existing, c *model.Category) error {
	inPlace := existing.IsDefault || existing.ID == c.ID
	if !inPlace {
		err := a.database.DeleteCategory(a.ctx, existing.ID)
		switch {
		case errors.Is(err, apperrors.ErrLastCategory):
			inPlace = true
		case err != nil:
			return err
		}
	}

	if inPlace {
		if err := a.updateInPlace(existing, c); err != nil {
			return err
		}
	} else {
		if err := a.database.CreateCategory(a.ctx, c); err != nil {
			return err
		}
		a.categories[c.ID] = c.ID
	}
	a.res.CategoriesRestored++
	a.res.Replaced++
	return nil
}

func (a *applier) updateInPlace(existing, c *model.Category) error {
	existing.Name = c.Name
	existing.DisplayName = c.DisplayName
	existing.Color = c.Color
	existing.Position = c.Position
	if err := a.database.UpdateCategory(a.ctx, existing); err != nil {
		return err
	}
	a.categories[c.ID] = existing.ID
	return nil
}

// freeCategoryName returns name_N for the first N not used by a live
// category.
func (a *applier) freeCategoryName(name string) (string, error) {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		c, err := a.database.FindCategoryByName(a.ctx, candidate)
		if err != nil {
			return "", err
		}
		if c == nil {
			return candidate, nil
		}
	}
}

func (a *applier) liveCategory(archiveID string) (string, error) {
	if id, ok := a.categories[archiveID]; ok {
		return id, nil
	}
	// Incremental archives may refer to a category they do not carry.
	c, err := a.database.FindCategoryByID(a.ctx, archiveID)
	if err != nil || c == nil {
		return "", err
	}
	return c.ID, nil
}

func (a *applier) restorePhoto(p *model.Photo) error {
	if a.missing[p.ID] {
		return nil
	}
	categoryID, err := a.liveCategory(p.CategoryID)
	if err != nil {
		return err
	}
	if categoryID == "" {
		a.res.fail("photo %s: category %s is not in the library", p.ID, p.CategoryID)
		return nil
	}
	p.CategoryID = categoryID
	archiveID := p.ID

	existing, err := a.database.FindPhotoByPath(a.ctx, p.Path)
	if err != nil {
		return err
	}
	if existing == nil {
		if existing, err = a.database.FindPhotoByID(a.ctx, p.ID); err != nil {
			return err
		}
	}

	if existing != nil {
		switch a.opts.OnDuplicate {
		case ResolveReplace:
			if existing.ID != p.ID {
				if err := a.database.DeletePhoto(a.ctx, existing.ID); err != nil {
					return err
				}
			}
			a.res.Replaced++

		case ResolveRename:
			old := p.Path
			if err := a.renamePhoto(p); err != nil {
				return err
			}
			a.res.Renamed++
			a.res.warn("photo %s renamed to %s", old, p.Path)

		default:
			a.res.Skipped++
			if a.opts.OnDuplicate == ResolveAskCaller {
				a.res.warn("photo %s already exists; no caller decision available, skipped", p.Path)
			} else {
				a.res.warn("photo %s already exists, skipped", p.Path)
			}
			return nil
		}
	}

	if !p.IsBundled() {
		ok, err := a.placeMedia(archiveID, p)
		if err != nil || !ok {
			return err
		}
	}

	if err := a.database.CreatePhoto(a.ctx, p); err != nil {
		return err
	}
	a.res.PhotosRestored++
	return nil
}

// renamePhoto gives p a fresh id and a file name stem_N.ext not used in the
// media store or by a live photo.
func (a *applier) renamePhoto(p *model.Photo) error {
	fileName := path.Base(p.Path)
	ext := path.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		rel := a.media.PhotoPath(candidate)
		if a.media.Exists(rel) {
			continue
		}
		taken, err := a.database.FindPhotoByPath(a.ctx, rel)
		if err != nil {
			return err
		}
		if taken != nil {
			continue
		}
		p.ID = a.idgen.New()
		p.Path = rel
		if ext := path.Ext(p.Name); ext != "" {
			p.Name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(p.Name, ext), n, ext)
		}
		return nil
	}
}

// placeMedia copies a photo's file, and its thumbnail when asked, into the
// media store. archiveID is the photo's id in the manifest, which a rename
// replaces. It returns false when the photo was left out.
func (a *applier) placeMedia(archiveID string, p *model.Photo) (bool, error) {
	m := a.manifest
	if !m.HasMedia() {
		// Metadata-only archive: the file must already be in the library.
		if !a.media.Exists(p.Path) {
			a.res.fail("photo %s: %v", p.ID, &apperrors.IntegrityError{File: p.Path, Missing: true})
			return false, nil
		}
		return true, nil
	}

	fe, _ := m.FileFor(archiveID)
	src := a.ws.Path(model.PhotoEntryName(fe.FileName))
	sum, err := a.place(src, p.Path)
	if err != nil {
		return false, err
	}
	if a.opts.ValidateIntegrity && fe.Checksum != "" && sum != fe.Checksum {
		a.res.warn("photo %s: %v", p.ID, &apperrors.IntegrityError{File: p.Path, Expected: fe.Checksum, Actual: sum})
	}
	p.Checksum = sum

	if a.opts.RestoreThumbnails {
		thumbSrc := a.ws.Path(model.ThumbnailEntryName(fe.FileName))
		if _, err := os.Stat(thumbSrc); err == nil {
			if _, err := a.place(thumbSrc, a.media.ThumbnailPath(path.Base(p.Path))); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// place copies src into the media store at rel. A live file already there
// is parked in the workspace first so a rollback can put it back.
func (a *applier) place(src, rel string) (string, error) {
	abs, err := a.media.Abs(rel)
	if err != nil {
		return "", err
	}
	unlock := a.ops.LockPath(abs)
	defer unlock()

	change := fileChange{rel: rel}
	if a.media.Exists(rel) {
		parked, err := a.ws.Park(abs)
		if err != nil {
			return "", fmt.Errorf("moving aside %s: %w", rel, err)
		}
		change.parked = parked
	}
	a.changes = append(a.changes, change)

	return a.media.CopyIn(src, rel)
}

func (a *applier) applyDeletion(d model.Deletion) error {
	var err error
	switch d.ItemType {
	case model.ItemPhoto:
		err = a.database.DeletePhoto(a.ctx, d.ItemID)
	case model.ItemCategory:
		err = a.database.DeleteCategory(a.ctx, d.ItemID)
	default:
		a.res.warn("deletion of unknown item type %q ignored", d.ItemType)
		return nil
	}
	switch {
	case err == nil:
		a.res.DeletionsApplied++
		return nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case errors.Is(err, apperrors.ErrDefaultCategory), errors.Is(err, apperrors.ErrLastCategory):
		a.res.warn("deletion of category %s not applied: %v", d.ItemID, err)
		return nil
	default:
		return err
	}
}

// rollback puts the snapshot back after a failed Replace restore. It does
// not retry; a failure is logged and reported in the result.
func (a *applier) rollback(cause error) {
	a.logger.Warn("restore failed, rolling back", "error", cause)
	ctx := context.WithoutCancel(a.ctx)

	var errs []error
	if err := a.database.ClearLibrary(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing library: %w", err))
	}
	for _, c := range a.snap.categories {
		if err := a.database.CreateCategory(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", c.Name, err))
		}
	}
	for _, p := range a.snap.photos {
		if err := a.database.CreatePhoto(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("photo %s: %w", p.ID, err))
		}
	}
	if a.snap.settings != nil {
		if err := a.database.SaveSettings(ctx, a.snap.settings); err != nil {
			errs = append(errs, fmt.Errorf("settings: %w", err))
		}
	}

	for i := len(a.changes) - 1; i >= 0; i-- {
		ch := a.changes[i]
		var err error
		if ch.parked == "" {
			err = a.media.Delete(ch.rel)
		} else {
			err = a.media.MoveIn(ch.parked, ch.rel)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("file %s: %w", ch.rel, err))
		}
	}

	a.res.RolledBack = true
	a.res.Phase = PhaseRolledBack
	if err := errors.Join(errs...); err != nil {
		a.res.RollbackError = err.Error()
		a.logger.Error("rollback incomplete", "error", err)
	} else {
		a.logger.Info("rollback completed",
			"categories", len(a.snap.categories),
			"photos", len(a.snap.photos))
	}
	a.progress("rolled back")
}

// removeReplacedMedia deletes the files of photos that a completed Replace
// restore dropped from the library.
func (a *applier) removeReplacedMedia() {
	for _, p := range a.snap.photos {
		if p.IsBundled() {
			continue
		}
		live, err := a.database.FindPhotoByPath(a.ctx, p.Path)
		if err != nil || live != nil {
			continue
		}
		for _, rel := range []string{p.Path, a.media.ThumbnailPath(path.Base(p.Path))} {
			if err := a.media.Delete(rel); err != nil {
				a.res.warn("removing replaced file %s: %v", rel, err)
			}
		}
	}
}
