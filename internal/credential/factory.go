// Package credential stores the device unlock credential used to encrypt
// backups when no explicit credential is given.
package credential

import (
	"fmt"

	"photovault/internal/config"
	"photovault/internal/gallery"
)

// NewStoreFromConfig creates a CredentialStore based on the configuration type.
func NewStoreFromConfig(cfg config.CredentialConfig) (gallery.CredentialStore, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.Path == "" || cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age credential store requires path and identity_path")
		}
		return NewAgeStore(cfg.Path, cfg.IdentityPath), nil
	case "memory":
		return NewMemoryStore(""), nil
	default:
		return nil, fmt.Errorf("unknown credential type: %q", cfg.Type)
	}
}
