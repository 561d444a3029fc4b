package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"photovault/internal/media"
)

// TestImage returns a w×h gradient. Different seeds give different pixels,
// and therefore different encoded bytes.
func TestImage(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x) + seed, uint8(y), seed * 7, 255})
		}
	}
	return img
}

// JPEG encodes a TestImage as JPEG.
func JPEG(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, TestImage(w, h, seed), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

// PNG encodes a TestImage as PNG.
func PNG(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, TestImage(w, h, seed)); err != nil {
		t.Fatalf("encoding png fixture: %v", err)
	}
	return buf.Bytes()
}

// OversizedPNG returns a tiny PNG whose header claims a w×h picture. The
// IHDR checksum is fixed up so decoders accept the header.
func OversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := PNG(t, 4, 4, 1)
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// EXIFSegment builds a JPEG APP1 segment whose IFD0 carries Make,
// Orientation and DateTime ("2006:01:02 15:04:05").
func EXIFSegment(cameraMake string, orientation uint16, dateTime string) []byte {
	be := binary.BigEndian
	makeVal := cameraMake + "\x00"
	dateVal := dateTime + "\x00"
	const entries = 3
	dataOffset := uint32(8 + 2 + entries*12 + 4)

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, be, uint16(42))
	binary.Write(&tiff, be, uint32(8))
	binary.Write(&tiff, be, uint16(entries))

	// Make (ASCII)
	binary.Write(&tiff, be, []uint16{0x010f, 2})
	binary.Write(&tiff, be, uint32(len(makeVal)))
	binary.Write(&tiff, be, dataOffset)
	// Orientation (SHORT, stored inline)
	binary.Write(&tiff, be, []uint16{0x0112, 3})
	binary.Write(&tiff, be, uint32(1))
	binary.Write(&tiff, be, []uint16{orientation, 0})
	// DateTime (ASCII)
	binary.Write(&tiff, be, []uint16{0x0132, 2})
	binary.Write(&tiff, be, uint32(len(dateVal)))
	binary.Write(&tiff, be, dataOffset+uint32(len(makeVal)))

	binary.Write(&tiff, be, uint32(0)) // no next IFD
	tiff.WriteString(makeVal)
	tiff.WriteString(dateVal)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xff, 0xe1, 0, 0}
	be.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// JPEGWithEXIF encodes a TestImage as JPEG carrying an EXIF segment from an
// "Acme" camera, orientation 6, taken 2023-07-04 12:00:00.
func JPEGWithEXIF(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	return media.AttachEXIF(JPEG(t, w, h, seed), EXIFSegment("Acme", 6, "2023:07:04 12:00:00"))
}

// WriteFile writes data to dir/name, creating parents, and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}
