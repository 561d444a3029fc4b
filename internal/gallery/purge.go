package gallery

import (
	"context"
	"fmt"
	"path"

	"photovault/internal/model"
)

// PurgeStats reports what a purge sweep removed.
type PurgeStats struct {
	Categories int
	Photos     int
	Files      int
	Errors     []string
}

// Purge hard-deletes items whose tombstones are past their retention and
// securely removes media files no live photo still uses. A file that cannot
// be removed is reported and does not stop the sweep.
func (l *Library) Purge(ctx context.Context) (*PurgeStats, error) {
	due, err := l.database.DueDeletions(ctx, l.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("listing due deletions: %w", err)
	}

	stats := &PurgeStats{}
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		orphaned, err := l.database.PurgeItem(ctx, d)
		if err != nil {
			return stats, fmt.Errorf("purging %s %s: %w", d.ItemType, d.ItemID, err)
		}
		switch d.ItemType {
		case model.ItemCategory:
			stats.Categories++
		case model.ItemPhoto:
			stats.Photos++
		}

		for _, rel := range orphaned {
			for _, file := range []string{rel, l.media.ThumbnailPath(path.Base(rel))} {
				if !l.media.Exists(file) {
					continue
				}
				if err := l.media.Delete(file); err != nil {
					l.logger.Warn("removing purged media", "path", file, "error", err)
					stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", file, err))
					continue
				}
				stats.Files++
			}
		}
	}

	if len(due) > 0 {
		l.logger.Info("purge completed",
			"categories", stats.Categories,
			"photos", stats.Photos,
			"files", stats.Files)
	}
	return stats, nil
}
