package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Compile-time check that ImageConverter implements Converter.
var _ Converter = (*ImageConverter)(nil)

// ImageConverter converts the common raster formats (JPEG, PNG, GIF,
// TIFF, BMP) to JPEG in-process. JPEG input passes through untouched.
type ImageConverter struct {
	quality int
}

// Option configures an ImageConverter.
type Option func(*ImageConverter)

// WithJPEGQuality sets the encoding quality (1-100) for re-encoded and
// resized output.
func WithJPEGQuality(q int) Option {
	return func(c *ImageConverter) {
		if q >= 1 && q <= 100 {
			c.quality = q
		}
	}
}

// NewImageConverter creates an ImageConverter with default quality 90.
func NewImageConverter(opts ...Option) *ImageConverter {
	c := &ImageConverter{quality: 90}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// decodableExts are the extensions the in-process decoders understand.
// Used only to word the error: an extension outside this set is
// "unsupported", a failed decode inside it is "malformed".
var decodableExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".tif": {}, ".tiff": {},
}

// Convert normalizes an upload to JPEG. Already-JPEG input is passed
// through byte-identical with Processed=false.
func (c *ImageConverter) Convert(ctx context.Context, data []byte, filename string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		ext := strings.ToLower(filepath.Ext(filename))
		if _, known := decodableExts[ext]; !known && ext != "" {
			return Result{}, &Error{Filename: filename, Reason: "unsupported format: " + ext, Err: err}
		}
		return Result{}, &Error{Filename: filename, Reason: "malformed file", Err: err}
	}

	bounds := img.Bounds()
	if format == "jpeg" {
		return Result{
			Data:        data,
			ContentType: "image/jpeg",
			Ext:         "jpg",
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
		}, nil
	}

	encoded, err := c.encodeJPEG(img)
	if err != nil {
		return Result{}, &Error{Filename: filename, Reason: "re-encoding failed", Err: err}
	}

	return Result{
		Data:           encoded,
		ContentType:    "image/jpeg",
		Ext:            "jpg",
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Processed:      true,
		OriginalFormat: format,
	}, nil
}

// Resize scales the image down to at most maxWidth pixels wide,
// preserving aspect ratio, and re-encodes it as JPEG.
func (c *ImageConverter) Resize(ctx context.Context, data []byte, maxWidth int) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, &Error{Reason: "malformed file", Err: err}
	}

	resized := false
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		resized = true
	}

	encoded, err := c.encodeJPEG(img)
	if err != nil {
		return Result{}, &Error{Reason: "re-encoding failed", Err: err}
	}

	bounds := img.Bounds()
	return Result{
		Data:           encoded,
		ContentType:    "image/jpeg",
		Ext:            "jpg",
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Processed:      resized || format != "jpeg",
		OriginalFormat: format,
	}, nil
}

func (c *ImageConverter) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
