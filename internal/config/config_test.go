package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DeviceID: "tablet-abc",
		BaseDir:  "/home/user/.local/share/pv",
		LogDir:   "/home/user/.local/share/pv/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/pv/db"},
		Library:  LibraryConfig{Root: "/home/user/.local/share/pv/library"},
		Import: ImportConfig{
			MaxBatchSize: 20,
			Workers:      2,
			Ignore:       []string{"*.tmp", ".thumbnails"},
		},
		Breaker: BreakerConfig{FailureThreshold: 3, ResetTimeout: "1m"},
		Archive: ArchiveConfig{MaxEntries: 500},
		Credential: CredentialConfig{
			Type:         "age",
			Path:         "/home/user/.local/share/pv/keys/device-lock.age",
			IdentityPath: "/home/user/.local/share/pv/keys/device.key",
		},
		Log: LogConfig{Level: "debug", JSON: true},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, original.DeviceID)
	}
	if got.Library.Root != original.Library.Root {
		t.Errorf("Library.Root = %q, want %q", got.Library.Root, original.Library.Root)
	}
	if got.Import.MaxBatchSize != 20 || got.Import.Workers != 2 {
		t.Errorf("Import = %+v", got.Import)
	}
	if len(got.Import.Ignore) != 2 {
		t.Fatalf("len(Import.Ignore) = %d, want 2", len(got.Import.Ignore))
	}
	if got.Breaker.ResetTimeoutDuration() != time.Minute {
		t.Errorf("Breaker.ResetTimeoutDuration() = %s, want 1m", got.Breaker.ResetTimeoutDuration())
	}
	if got.Credential.IdentityPath != original.Credential.IdentityPath {
		t.Errorf("Credential.IdentityPath = %q, want %q", got.Credential.IdentityPath, original.Credential.IdentityPath)
	}
	if !got.Log.JSON || got.Log.Level != "debug" {
		t.Errorf("Log = %+v", got.Log)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("device-1", "/data/pv")

	if cfg.DeviceID != "device-1" {
		t.Errorf("DeviceID = %q, want %q", cfg.DeviceID, "device-1")
	}
	if cfg.LogDir != "/data/pv/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/pv/log")
	}
	if cfg.Library.Root != "/data/pv/library" {
		t.Errorf("Library.Root = %q", cfg.Library.Root)
	}
	if cfg.Credential.Path != "/data/pv/keys/device-lock.age" {
		t.Errorf("Credential.Path = %q", cfg.Credential.Path)
	}
	if cfg.Import.MaxBatchSize != DefaultMaxBatchSize {
		t.Errorf("Import.MaxBatchSize = %d, want %d", cfg.Import.MaxBatchSize, DefaultMaxBatchSize)
	}
	if cfg.Encryption.Iterations != DefaultIterations {
		t.Errorf("Encryption.Iterations = %d, want %d", cfg.Encryption.Iterations, DefaultIterations)
	}
	if cfg.Import.MaxMegapixels != DefaultMaxMegapixels {
		t.Errorf("Import.MaxMegapixels = %d, want %d", cfg.Import.MaxMegapixels, DefaultMaxMegapixels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on a new config error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative batch", mutate: func(c *Config) { c.Import.MaxBatchSize = -1 }, wantErr: "max_batch_size"},
		{name: "quality too high", mutate: func(c *Config) { c.Import.Quality = 101 }, wantErr: "quality"},
		{name: "bad timeout", mutate: func(c *Config) { c.Breaker.ResetTimeout = "soon" }, wantErr: "reset_timeout"},
		{name: "negative timeout", mutate: func(c *Config) { c.Breaker.ResetTimeout = "-5s" }, wantErr: "reset_timeout"},
		{name: "weak kdf", mutate: func(c *Config) { c.Encryption.Iterations = 10 }, wantErr: "iterations"},
		{name: "kdf above cap", mutate: func(c *Config) { c.Encryption.Iterations = 20_000_000 }, wantErr: "iterations"},
		{name: "negative megapixels", mutate: func(c *Config) { c.Import.MaxMegapixels = -1 }, wantErr: "dimensions"},
		{name: "negative archive limit", mutate: func(c *Config) { c.Archive.MaxEntries = -3 }, wantErr: "archive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if cfg.Archive.MaxTotalSize != DefaultMaxTotalSize {
					t.Errorf("Archive.MaxTotalSize = %d, want default", cfg.Archive.MaxTotalSize)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pv.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pv.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pv.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "read-test" {
			t.Errorf("DeviceID = %q, want %q", got.DeviceID, "read-test")
		}
		if got.Breaker.ResetTimeoutDuration() != 30*time.Second {
			t.Errorf("ResetTimeoutDuration() = %s, want 30s", got.Breaker.ResetTimeoutDuration())
		}
	})

	t.Run("fills defaults for sparse file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pv.toml")
		if err := os.WriteFile(path, []byte("device_id = \"sparse\"\n[import]\nworkers = 8\n"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Import.Workers != 8 {
			t.Errorf("Import.Workers = %d, want 8", got.Import.Workers)
		}
		if got.Import.MaxBatchSize != DefaultMaxBatchSize {
			t.Errorf("Import.MaxBatchSize = %d, want %d", got.Import.MaxBatchSize, DefaultMaxBatchSize)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/pv.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
