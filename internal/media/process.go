package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded size of a picture (50 megapixels).
const DefaultMaxPixels = 50_000_000

// ErrTooLarge is returned for pictures whose header declares more pixels
// than the decode budget allows.
var ErrTooLarge = errors.New("image too large")

// Optimized is a picture ready to be stored.
type Optimized struct {
	Data   []byte
	Format Format // format of Data
	Width  int
	Height int
	// Image is the decoded picture, nil when the format cannot be decoded.
	Image image.Image
}

// DecodeConfig reads the dimensions declared in the header of data.
func DecodeConfig(data []byte, f Format) (image.Config, error) {
	r := bytes.NewReader(data)
	var (
		cfg image.Config
		err error
	)
	switch f {
	case JPEG:
		cfg, err = jpeg.DecodeConfig(r)
	case PNG:
		cfg, err = png.DecodeConfig(r)
	case WebP:
		cfg, err = webp.DecodeConfig(r)
	default:
		return image.Config{}, fmt.Errorf("%w: cannot decode %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return image.Config{}, fmt.Errorf("decoding %s header: %w", f, err)
	}
	return cfg, nil
}

// Decode decodes data according to f. The header is checked first and a
// picture declaring more than maxPixels pixels is refused before any pixel
// memory is allocated; maxPixels <= 0 means DefaultMaxPixels.
func Decode(data []byte, f Format, maxPixels int) (image.Image, error) {
	cfg, err := DecodeConfig(data, f)
	if err != nil {
		return nil, err
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decoding %s: empty image %dx%d", f, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	r := bytes.NewReader(data)
	var img image.Image
	switch f {
	case JPEG:
		img, err = jpeg.Decode(r)
	case PNG:
		img, err = png.Decode(r)
	case WebP:
		img, err = webp.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f, err)
	}
	return img, nil
}

// Optimize downscales the picture to fit within maxDim and re-encodes it.
// PNG stays PNG; JPEG and WebP become JPEG at quality. HEIF is passed
// through unchanged. The original EXIF segment of a JPEG is carried over.
// Pictures over maxPixels are refused with ErrTooLarge.
func Optimize(data []byte, f Format, maxDim, quality, maxPixels int) (*Optimized, error) {
	if !f.Decodable() {
		return &Optimized{Data: data, Format: f}, nil
	}

	img, err := Decode(data, f, maxPixels)
	if err != nil {
		return nil, err
	}
	img = fit(img, maxDim)
	b := img.Bounds()

	var buf bytes.Buffer
	out := &Optimized{Format: JPEG, Width: b.Dx(), Height: b.Dy(), Image: img}
	if f == PNG {
		out.Format = PNG
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
		out.Data = buf.Bytes()
		return out, nil
	}

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	out.Data = buf.Bytes()
	if f == JPEG {
		out.Data = AttachEXIF(out.Data, ExtractEXIFSegment(data))
	}
	return out, nil
}

// fit scales img down so neither side exceeds maxDim.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Thumbnail crops the centre square of img and scales it to size×size JPEG.
func Thumbnail(img image.Image, size, quality int) ([]byte, error) {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return nil, fmt.Errorf("empty image")
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
