package app

import (
	"fmt"
	"os"
	"path/filepath"

	"photovault/internal/config"
)

// Defaults are the locations pv uses before a config file exists.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	// LibraryRoot holds photos/ and thumbnails/. It may live outside
	// BaseDir, e.g. on a larger disk.
	LibraryRoot string
}

// GetDefaults returns the default locations, checking environment variables first.
// Environment variables:
//   - PV_CONFIG_PATH: config file location (default: ~/.config/pv.toml)
//   - PV_HOME: base directory for the database, logs, staging and keys (default: ~/.local/share/pv)
//   - PV_LIBRARY: photo library root (default: $PV_HOME/library)
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome("PV_CONFIG_PATH", ".config", "pv.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("PV_HOME", ".local", "share", "pv")
	if err != nil {
		return nil, err
	}

	library := os.Getenv("PV_LIBRARY")
	if library == "" {
		library = filepath.Join(baseDir, "library")
	}
	return &Defaults{ConfigPath: configPath, BaseDir: baseDir, LibraryRoot: library}, nil
}

// NewConfig returns a config for deviceID laid out under the default locations.
func (d *Defaults) NewConfig(deviceID string) *config.Config {
	cfg := config.NewConfig(deviceID, d.BaseDir)
	cfg.Library.Root = d.LibraryRoot
	return cfg
}

// envOrHome returns the value of key, or the path under the user's home
// directory built from elem.
func envOrHome(key string, elem ...string) (string, error) {
	if path := os.Getenv(key); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
