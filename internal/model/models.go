package model

import "time"

// Category groups photos in the gallery.
// Name is unique among live categories, compared case-insensitively.
type Category struct {
	ID          string    `json:"id"` // UUID, or a fixed id for seeded defaults
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"` // "#RRGGBB"
	IsDefault   bool      `json:"isDefault"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PhotoSource records where a photo came from.
type PhotoSource string

const (
	// SourceImported photos were ingested by the user and live in the media store.
	SourceImported PhotoSource = "imported"
	// SourceBundled photos ship with the app and have no file in the media store.
	SourceBundled PhotoSource = "bundled"
)

// Photo is a single picture in a category.
type Photo struct {
	ID         string         `json:"id"` // UUID
	Name       string         `json:"name"`
	Path       string         `json:"path"` // relative to the media store root, e.g. "photos/<file>"
	CategoryID string         `json:"categoryId"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Size       int64          `json:"size"`
	Checksum   string         `json:"checksum,omitempty"` // SHA-256 of the stored file
	Source     PhotoSource    `json:"source"`
	Metadata   *PhotoMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// IsBundled reports whether the photo has no file in the media store.
func (p *Photo) IsBundled() bool {
	return p.Source == SourceBundled
}

// ItemType identifies what a tombstone refers to.
type ItemType string

const (
	ItemPhoto    ItemType = "photo"
	ItemCategory ItemType = "category"
)

// TombstoneRetention is how long a deletion record is kept before it can be purged.
const TombstoneRetention = 30 * 24 * time.Hour

// Deletion is a tombstone for a removed photo or category.
type Deletion struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	ItemType   ItemType  `json:"itemType"`
	DeletedAt  time.Time `json:"deletedAt"`
	PurgeAfter time.Time `json:"purgeAfter"`
	Purged     bool      `json:"purged"`
}

// Settings holds the non-sensitive settings carried by an archive.
// Credentials are never part of it.
type Settings struct {
	Theme string `json:"theme"`
}

// BackupKind distinguishes full and incremental archives.
type BackupKind string

const (
	BackupFull        BackupKind = "full"
	BackupIncremental BackupKind = "incremental"
)

// Backup is an entry in the backup log.
type Backup struct {
	ID            string     `json:"id"`
	Kind          BackupKind `json:"kind"`
	Path          string     `json:"path"`
	SinceBackupID string     `json:"sinceBackupId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	Encrypted     bool       `json:"encrypted"`
	CategoryCount int        `json:"categoryCount"`
	PhotoCount    int        `json:"photoCount"`
}

// PhotoMetadata is embedded capture information extracted on import.
// Every field is optional.
type PhotoMetadata struct {
	CaptureTime *time.Time `json:"captureTime,omitempty"`
	Latitude    float64    `json:"latitude,omitempty"`
	Longitude   float64    `json:"longitude,omitempty"`
	HasLocation bool       `json:"hasLocation,omitempty"`
	CameraMake  string     `json:"cameraMake,omitempty"`
	CameraModel string     `json:"cameraModel,omitempty"`
	Orientation int        `json:"orientation,omitempty"`
}
