package archive

import (
	"encoding/json"
	"strings"

	"photovault/internal/encryption"
	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// Structure describes an archive without extracting it.
type Structure struct {
	Entries        int
	DeclaredSize   int64
	Encrypted      bool
	Version        int // zero when the metadata is encrypted
	CategoryCount  int
	PhotoCount     int
	MediaFiles     int
	ThumbnailFiles int
}

// ValidateStructure opens the archive at path, runs the security checks,
// and reports what it contains. The metadata entry is mandatory.
func ValidateStructure(path string, limits Limits) (*Structure, error) {
	r, err := Open(path, limits)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Structure()
}

// Structure runs Check and summarizes the archive.
func (r *Reader) Structure() (*Structure, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}

	s := &Structure{Entries: len(r.rc.File)}
	for _, f := range r.rc.File {
		s.DeclaredSize += int64(f.UncompressedSize64)
		switch {
		case strings.HasPrefix(f.Name, model.ThumbnailPrefix):
			s.ThumbnailFiles++
		case strings.HasPrefix(f.Name, model.PhotosPrefix) && !strings.HasSuffix(f.Name, "/"):
			s.MediaFiles++
		}
	}

	data, err := r.ReadMetadata()
	if err != nil {
		return nil, err
	}

	if encryption.IsEnvelope(data) {
		s.Encrypted = true
		return s, nil
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &apperrors.ValidationError{Reason: "metadata is not valid JSON", Err: err}
	}
	s.Version = m.Version
	s.CategoryCount = len(m.Categories)
	s.PhotoCount = len(m.Photos)
	return s, nil
}
