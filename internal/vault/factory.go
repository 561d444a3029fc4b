package vault

import (
	"fmt"

	"photovault/internal/config"
	"photovault/internal/gallery"
)

// NewVaultFromConfig creates the live media library from the library config.
func NewVaultFromConfig(cfg config.LibraryConfig, ops gallery.FileOps) (*FileSystemVault, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("library requires root to be set")
	}
	return NewFileSystemVault(cfg.Root, ops)
}
