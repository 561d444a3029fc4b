package staging

import (
	"fmt"

	"photovault/internal/config"
	"photovault/internal/gallery"
)

// NewStagingAreaFromConfig creates the restore staging area from config.
func NewStagingAreaFromConfig(cfg config.StagingConfig, ops gallery.FileOps) (*FileSystemStagingArea, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("staging area requires dir to be set")
	}
	return NewFileSystemStagingArea(cfg.Dir, ops)
}
