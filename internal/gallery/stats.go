package gallery

import (
	"context"
	"fmt"
	"time"

	"photovault/internal/model"
)

// LibraryStats summarizes the live gallery.
type LibraryStats struct {
	Categories     int
	Photos         int
	ImportedPhotos int
	BundledPhotos  int
	TotalBytes     int64
	// PendingPurge counts tombstones still within their retention period.
	PendingPurge int
	Backups      int
	LastBackup   *model.Backup
}

// Stats gathers library counts.
func (l *Library) Stats(ctx context.Context) (*LibraryStats, error) {
	cats, err := l.database.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	photos, err := l.database.ListPhotos(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	tombstones, err := l.database.DeletionsSince(ctx, time.Unix(0, 0))
	if err != nil {
		return nil, fmt.Errorf("listing deletions: %w", err)
	}
	backups, err := l.database.ListBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	stats := &LibraryStats{
		Categories: len(cats),
		Photos:     len(photos),
		Backups:    len(backups),
	}
	for _, p := range photos {
		if p.IsBundled() {
			stats.BundledPhotos++
		} else {
			stats.ImportedPhotos++
		}
		stats.TotalBytes += p.Size
	}
	for _, d := range tombstones {
		if !d.Purged {
			stats.PendingPurge++
		}
	}
	if len(backups) > 0 {
		stats.LastBackup = backups[0]
	}
	return stats, nil
}
