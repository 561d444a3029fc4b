package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"photovault/internal/encryption"
)

// Config represents the main configuration for pv.
type Config struct {
	DeviceID   string           `toml:"device_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Library    LibraryConfig    `toml:"library"`
	Import     ImportConfig     `toml:"import"`
	Breaker    BreakerConfig    `toml:"breaker"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Credential CredentialConfig `toml:"credential"`
	Staging    StagingConfig    `toml:"staging"`
	Log        LogConfig        `toml:"log"`
}

// DatabaseConfig represents configuration for the gallery database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// LibraryConfig locates the live media store.
type LibraryConfig struct {
	Root string `toml:"root"` // photos/ and thumbnails/ live under it
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	MaxBatchSize  int      `toml:"max_batch_size"`
	Workers       int      `toml:"workers"`
	MaxDimension  int      `toml:"max_dimension"`
	Quality       int      `toml:"quality"`
	ThumbnailSize int      `toml:"thumbnail_size"`
	MaxMegapixels int      `toml:"max_megapixels"` // pictures declaring more are refused before decoding
	Ignore        []string `toml:"ignore"` // patterns skipped when discovering sources in directories
}

// BreakerConfig holds the circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int    `toml:"failure_threshold"`
	SuccessThreshold int    `toml:"success_threshold"`
	ResetTimeout     string `toml:"reset_timeout"` // Go duration, e.g. "30s"
	HalfOpenMaxCalls int    `toml:"half_open_max_calls"`
}

// ResetTimeoutDuration parses ResetTimeout. Validate has already checked it.
func (c BreakerConfig) ResetTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ResetTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ArchiveConfig bounds what an archive may expand to.
type ArchiveConfig struct {
	MaxEntries          int   `toml:"max_entries"`
	MaxTotalSize        int64 `toml:"max_total_size"`
	MaxCompressionRatio int64 `toml:"max_compression_ratio"`
}

// EncryptionConfig holds the archive encryption parameters.
type EncryptionConfig struct {
	Iterations int `toml:"iterations"`
}

// CredentialConfig represents configuration for the device credential store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CredentialConfig struct {
	Type         string `toml:"type"`                    // "age" (default) or "memory"
	Path         string `toml:"path,omitempty"`          // encrypted credential, type=age
	IdentityPath string `toml:"identity_path,omitempty"` // device secret, type=age
}

// StagingConfig locates restore workspaces.
type StagingConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	JSON  bool   `toml:"json"`
}

// Defaults applied by Validate when a field is left empty.
const (
	DefaultMaxBatchSize        = 50
	DefaultWorkers             = 4
	DefaultMaxDimension        = 1920
	DefaultQuality             = 85
	DefaultThumbnailSize       = 300
	DefaultMaxMegapixels       = 50
	DefaultFailureThreshold    = 5
	DefaultSuccessThreshold    = 2
	DefaultResetTimeout        = "30s"
	DefaultHalfOpenMaxCalls    = 1
	DefaultMaxEntries          = 10000
	DefaultMaxTotalSize        = 1 << 30
	DefaultMaxCompressionRatio = 100
	DefaultIterations          = 10000
)

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(deviceID, baseDir string) *Config {
	cfg := &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Library:  LibraryConfig{Root: filepath.Join(baseDir, "library")},
		Credential: CredentialConfig{
			Type:         "age",
			Path:         filepath.Join(baseDir, "keys", "device-lock.age"),
			IdentityPath: filepath.Join(baseDir, "keys", "device.key"),
		},
		Staging: StagingConfig{Dir: filepath.Join(baseDir, "staging")},
		Log:     LogConfig{Level: "info"},
	}
	cfg.fillDefaults()
	return cfg
}

// fillDefaults sets every zero field to its default.
func (c *Config) fillDefaults() {
	if c.Import.MaxBatchSize == 0 {
		c.Import.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.Import.Workers == 0 {
		c.Import.Workers = DefaultWorkers
	}
	if c.Import.MaxDimension == 0 {
		c.Import.MaxDimension = DefaultMaxDimension
	}
	if c.Import.Quality == 0 {
		c.Import.Quality = DefaultQuality
	}
	if c.Import.ThumbnailSize == 0 {
		c.Import.ThumbnailSize = DefaultThumbnailSize
	}
	if c.Import.MaxMegapixels == 0 {
		c.Import.MaxMegapixels = DefaultMaxMegapixels
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.Breaker.SuccessThreshold == 0 {
		c.Breaker.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Breaker.ResetTimeout == "" {
		c.Breaker.ResetTimeout = DefaultResetTimeout
	}
	if c.Breaker.HalfOpenMaxCalls == 0 {
		c.Breaker.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	if c.Archive.MaxEntries == 0 {
		c.Archive.MaxEntries = DefaultMaxEntries
	}
	if c.Archive.MaxTotalSize == 0 {
		c.Archive.MaxTotalSize = DefaultMaxTotalSize
	}
	if c.Archive.MaxCompressionRatio == 0 {
		c.Archive.MaxCompressionRatio = DefaultMaxCompressionRatio
	}
	if c.Encryption.Iterations == 0 {
		c.Encryption.Iterations = DefaultIterations
	}
}

// Validate fills defaults for zero values and rejects impossible ones.
func (c *Config) Validate() error {
	c.fillDefaults()

	switch {
	case c.Import.MaxBatchSize < 0:
		return fmt.Errorf("import.max_batch_size must be positive, got %d", c.Import.MaxBatchSize)
	case c.Import.Workers < 0:
		return fmt.Errorf("import.workers must be positive, got %d", c.Import.Workers)
	case c.Import.Quality < 1 || c.Import.Quality > 100:
		return fmt.Errorf("import.quality must be within 1..100, got %d", c.Import.Quality)
	case c.Import.MaxDimension < 0 || c.Import.ThumbnailSize < 0 || c.Import.MaxMegapixels < 0:
		return fmt.Errorf("import dimensions must be positive")
	case c.Breaker.FailureThreshold < 0 || c.Breaker.SuccessThreshold < 0 || c.Breaker.HalfOpenMaxCalls < 0:
		return fmt.Errorf("breaker thresholds must be positive")
	case c.Archive.MaxEntries < 0 || c.Archive.MaxTotalSize < 0 || c.Archive.MaxCompressionRatio < 0:
		return fmt.Errorf("archive limits must be positive")
	case c.Encryption.Iterations < 1000 || c.Encryption.Iterations > encryption.MaxIterations:
		return fmt.Errorf("encryption.iterations must be within 1000..%d, got %d", encryption.MaxIterations, c.Encryption.Iterations)
	}

	d, err := time.ParseDuration(c.Breaker.ResetTimeout)
	if err != nil {
		return fmt.Errorf("breaker.reset_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("breaker.reset_timeout must be positive, got %s", d)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
