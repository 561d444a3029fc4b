package gallery

import (
	"context"
	"time"

	"photovault/internal/model"
)

// Database provides the persistent gallery state: categories, photos,
// tombstones, settings and the backup log.
//
// Find methods return (nil, nil) when the record does not exist or is
// soft-deleted. Delete methods soft-delete and record a tombstone in the same
// transaction; Create methods resurrect a soft-deleted record with the same
// id and drop its tombstone.
type Database interface {
	// Category operations

	// ListCategories returns live categories ordered by position.
	ListCategories(ctx context.Context) ([]*model.Category, error)

	FindCategoryByID(ctx context.Context, id string) (*model.Category, error)

	// FindCategoryByName matches case-insensitively among live categories.
	FindCategoryByName(ctx context.Context, name string) (*model.Category, error)

	// CreateCategory inserts c. Returns ErrCategoryNameTaken when a live
	// category already uses the name.
	CreateCategory(ctx context.Context, c *model.Category) error

	UpdateCategory(ctx context.Context, c *model.Category) error

	// DeleteCategory soft-deletes a category and its photos. Returns
	// ErrDefaultCategory or ErrLastCategory when the delete is not allowed.
	DeleteCategory(ctx context.Context, id string) error

	// CategoriesChangedSince returns live categories updated after t.
	CategoriesChangedSince(ctx context.Context, t time.Time) ([]*model.Category, error)

	// Photo operations

	// ListPhotos returns live photos, optionally filtered to one category.
	ListPhotos(ctx context.Context, categoryID string) ([]*model.Photo, error)

	FindPhotoByID(ctx context.Context, id string) (*model.Photo, error)

	// FindPhotoByChecksum returns a live photo with identical content.
	FindPhotoByChecksum(ctx context.Context, checksum string) (*model.Photo, error)

	// FindPhotoByPath returns the live photo stored at a media store path.
	FindPhotoByPath(ctx context.Context, path string) (*model.Photo, error)

	CreatePhoto(ctx context.Context, p *model.Photo) error

	DeletePhoto(ctx context.Context, id string) error

	// PhotosChangedSince returns live photos updated after t.
	PhotosChangedSince(ctx context.Context, t time.Time) ([]*model.Photo, error)

	// ClearLibrary hard-deletes every live photo and every live non-default
	// category. No tombstones are recorded, so an incremental backup
	// against a backup taken before the clear does not carry the removals.
	ClearLibrary(ctx context.Context) error

	// Tombstone operations

	// DeletionsSince returns tombstones recorded after t.
	DeletionsSince(ctx context.Context, t time.Time) ([]*model.Deletion, error)

	// DueDeletions returns unpurged tombstones whose retention ended before now.
	DueDeletions(ctx context.Context, now time.Time) ([]*model.Deletion, error)

	// PurgeItem hard-deletes the soft-deleted row a tombstone refers to and
	// marks the tombstone purged. It returns the media paths of purged photos
	// that no remaining photo row refers to.
	PurgeItem(ctx context.Context, d *model.Deletion) ([]string, error)

	// Settings operations

	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error

	// Backup log operations

	RecordBackup(ctx context.Context, b *model.Backup) error
	FindBackup(ctx context.Context, id string) (*model.Backup, error)

	// ListBackups returns the backup log, newest first.
	ListBackups(ctx context.Context) ([]*model.Backup, error)

	// Close closes the database connection.
	Close() error
}
