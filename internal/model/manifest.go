package model

import (
	"fmt"
	"time"
)

const (
	// ManifestVersion is the version written by this build.
	ManifestVersion = 2
	// MinManifestVersion is the oldest version restore accepts.
	MinManifestVersion = 1
)

// Archive entry layout.
const (
	MetadataEntry   = "metadata.json"
	PhotosPrefix    = "photos/"
	ThumbnailPrefix = "thumbnails/thumb_"
)

// PhotoEntryName returns the archive entry holding a photo file.
func PhotoEntryName(fileName string) string { return PhotosPrefix + fileName }

// ThumbnailEntryName returns the archive entry holding a thumbnail.
func ThumbnailEntryName(fileName string) string { return ThumbnailPrefix + fileName }

// FileEntry ties a photo to its media file inside the archive.
type FileEntry struct {
	PhotoID  string `json:"photoId"`
	FileName string `json:"fileName"`
	Checksum string `json:"checksum"`
}

// Manifest describes everything else in an archive.
type Manifest struct {
	Version      int         `json:"version"`
	BackupID     string      `json:"backupId,omitempty"`
	Kind         BackupKind  `json:"kind,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	Since        *time.Time  `json:"since,omitempty"`
	Categories   []Category  `json:"categories"`
	Photos       []Photo     `json:"photos"`
	PhotoFiles   []FileEntry `json:"photoFileManifest"`
	Settings     *Settings   `json:"settings,omitempty"`
	DeletedItems []Deletion  `json:"deletedItems,omitempty"`
}

// FileFor returns the file entry for a photo, if any.
func (m *Manifest) FileFor(photoID string) (FileEntry, bool) {
	for _, f := range m.PhotoFiles {
		if f.PhotoID == photoID {
			return f, true
		}
	}
	return FileEntry{}, false
}

// HasMedia reports whether the archive carries media files.
func (m *Manifest) HasMedia() bool {
	return len(m.PhotoFiles) > 0
}

// Check verifies the manifest's internal invariants: supported version,
// unique ids, a file entry for every imported photo when media is present,
// and photo category references that resolve (incremental archives may
// reference categories that were not carried).
func (m *Manifest) Check() error {
	if m.Version < MinManifestVersion || m.Version > ManifestVersion {
		return fmt.Errorf("unsupported version %d (supported %d..%d)", m.Version, MinManifestVersion, ManifestVersion)
	}

	categories := make(map[string]bool, len(m.Categories))
	for _, c := range m.Categories {
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("category with empty id or name")
		}
		if categories[c.ID] {
			return fmt.Errorf("duplicate category id %s", c.ID)
		}
		categories[c.ID] = true
	}

	files := make(map[string]bool, len(m.PhotoFiles))
	for _, f := range m.PhotoFiles {
		if f.FileName == "" {
			return fmt.Errorf("file entry for photo %s has no file name", f.PhotoID)
		}
		files[f.PhotoID] = true
	}

	photos := make(map[string]bool, len(m.Photos))
	for _, p := range m.Photos {
		if p.ID == "" {
			return fmt.Errorf("photo with empty id")
		}
		if photos[p.ID] {
			return fmt.Errorf("duplicate photo id %s", p.ID)
		}
		photos[p.ID] = true
		if m.HasMedia() && !p.IsBundled() && !files[p.ID] {
			return fmt.Errorf("photo %s has no file entry", p.ID)
		}
		if m.Kind != BackupIncremental && !categories[p.CategoryID] {
			return fmt.Errorf("photo %s references unknown category %s", p.ID, p.CategoryID)
		}
	}
	return nil
}
