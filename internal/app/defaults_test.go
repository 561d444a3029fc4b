package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("PV_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("PV_HOME", "/custom/pv")
		t.Setenv("PV_LIBRARY", "/mnt/photos")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if d.ConfigPath != "/custom/config.toml" {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, "/custom/config.toml")
		}
		if d.BaseDir != "/custom/pv" {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, "/custom/pv")
		}
		if d.LibraryRoot != "/mnt/photos" {
			t.Errorf("LibraryRoot = %q, want %q", d.LibraryRoot, "/mnt/photos")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("PV_CONFIG_PATH", "")
		t.Setenv("PV_HOME", "")
		t.Setenv("PV_LIBRARY", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		if want := filepath.Join(homeDir, ".config", "pv.toml"); d.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, want)
		}
		wantBase := filepath.Join(homeDir, ".local", "share", "pv")
		if d.BaseDir != wantBase {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, wantBase)
		}
		if want := filepath.Join(wantBase, "library"); d.LibraryRoot != want {
			t.Errorf("LibraryRoot = %q, want %q", d.LibraryRoot, want)
		}
	})
}

func TestDefaults_NewConfig(t *testing.T) {
	base := t.TempDir()
	d := &Defaults{ConfigPath: filepath.Join(base, "pv.toml"), BaseDir: base, LibraryRoot: "/mnt/photos"}

	cfg := d.NewConfig("dev-1")

	if cfg.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q", cfg.DeviceID)
	}
	if cfg.Library.Root != "/mnt/photos" {
		t.Errorf("Library.Root = %q, want the configured library", cfg.Library.Root)
	}
	paths := map[string]string{
		"log dir":       cfg.LogDir,
		"data dir":      cfg.Database.DataDir,
		"staging dir":   cfg.Staging.Dir,
		"credential":    cfg.Credential.Path,
		"identity file": cfg.Credential.IdentityPath,
	}
	for name, p := range paths {
		rel, err := filepath.Rel(base, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			t.Errorf("%s = %q, want a path under %q", name, p, base)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
