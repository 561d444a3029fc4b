// Package media validates, measures and re-encodes imported pictures.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported picture encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	HEIF Format = "heif"
)

// ErrUnsupportedFormat is returned for files that are not a supported picture.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var extensions = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".webp": WebP,
	".heic": HEIF,
	".heif": HEIF,
}

var heifBrands = []string{"heic", "heix", "hevc", "hevx", "mif1", "msf1", "heif"}

// HeaderSize is how many leading bytes DetectFormat needs.
const HeaderSize = 16

// DetectFormat checks that the file extension is supported and that the
// content's magic bytes agree with it.
func DetectFormat(name string, header []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	want, ok := extensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	got := sniff(header)
	if got == "" {
		return "", fmt.Errorf("%w: unrecognized content in %s", ErrUnsupportedFormat, filepath.Base(name))
	}
	if got != want {
		return "", fmt.Errorf("%w: %s has %s extension but %s content", ErrUnsupportedFormat, filepath.Base(name), want, got)
	}
	return got, nil
}

func sniff(h []byte) Format {
	switch {
	case len(h) >= 3 && h[0] == 0xff && h[1] == 0xd8 && h[2] == 0xff:
		return JPEG
	case len(h) >= 8 && bytes.Equal(h[:8], []byte("\x89PNG\r\n\x1a\n")):
		return PNG
	case len(h) >= 12 && bytes.Equal(h[:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WEBP")):
		return WebP
	case len(h) >= 12 && bytes.Equal(h[4:8], []byte("ftyp")):
		brand := string(h[8:12])
		for _, b := range heifBrands {
			if brand == b {
				return HEIF
			}
		}
	}
	return ""
}

// Extension returns the file extension written for a stored picture.
// WebP is re-encoded as JPEG.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case HEIF:
		return ".heic"
	default:
		return ".jpg"
	}
}

// Decodable reports whether the picture can be decoded and re-encoded.
func (f Format) Decodable() bool {
	return f != HEIF
}
