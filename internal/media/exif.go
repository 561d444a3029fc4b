package media

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"photovault/internal/model"
)

// ExtractMetadata reads capture information from embedded EXIF data.
// Missing or malformed EXIF yields an empty result, never an error.
func ExtractMetadata(data []byte) *model.PhotoMetadata {
	meta := &model.PhotoMetadata{}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	if t, err := x.DateTime(); err == nil {
		meta.CaptureTime = &t
	}
	if lat, long, err := x.LatLong(); err == nil {
		meta.Latitude, meta.Longitude, meta.HasLocation = lat, long, true
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.CameraMake = strings.TrimSpace(s)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.CameraModel = strings.TrimSpace(s)
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.Orientation = v
		}
	}
	return meta
}

var exifHeader = []byte("Exif\x00\x00")

// ExtractEXIFSegment returns the complete APP1 EXIF segment of a JPEG,
// marker included, or nil if there is none.
func ExtractEXIFSegment(jpeg []byte) []byte {
	if len(jpeg) < 4 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		return nil
	}
	for i := 2; i+4 <= len(jpeg); {
		if jpeg[i] != 0xff {
			return nil
		}
		marker := jpeg[i+1]
		if marker == 0xda || marker == 0xd9 {
			// Start of scan or end of image: no more metadata segments.
			return nil
		}
		length := int(binary.BigEndian.Uint16(jpeg[i+2 : i+4]))
		end := i + 2 + length
		if length < 2 || end > len(jpeg) {
			return nil
		}
		if marker == 0xe1 && bytes.HasPrefix(jpeg[i+4:end], exifHeader) {
			return append([]byte(nil), jpeg[i:end]...)
		}
		i = end
	}
	return nil
}

// AttachEXIF inserts an APP1 segment right after the SOI marker. The JPEG is
// returned unchanged if segment is empty or it already carries EXIF.
func AttachEXIF(jpeg, segment []byte) []byte {
	if len(segment) == 0 || len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		return jpeg
	}
	if ExtractEXIFSegment(jpeg) != nil {
		return jpeg
	}
	out := make([]byte, 0, len(jpeg)+len(segment))
	out = append(out, jpeg[:2]...)
	out = append(out, segment...)
	out = append(out, jpeg[2:]...)
	return out
}
