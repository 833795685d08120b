// Package convert provides the photo conversion boundary of the upload
// pipeline. To the pipeline a converter is a black box: bytes in, JPEG
// bytes plus metadata out, or a typed failure. The default implementation
// handles the common raster formats in-process; a RAW-capable external
// tool can replace it behind the same interface.
package convert

import (
	"context"
	"fmt"
)

// Error is the typed conversion failure. It carries enough detail to
// tell "unsupported format" apart from "malformed file".
type Error struct {
	Filename string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("convert %s: %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("convert: %s", e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the outcome of one conversion.
type Result struct {
	// Data is the converted (or passed-through) image bytes.
	Data []byte
	// ContentType is the MIME type of Data.
	ContentType string
	// Ext is the file extension for Data, without the leading dot.
	Ext string
	// Width and Height are the pixel dimensions of the image.
	Width  int
	Height int
	// Processed is true when the input required re-encoding.
	Processed bool
	// OriginalFormat names the source format when Processed is true.
	OriginalFormat string
}

// Converter turns an uploaded file into a displayable JPEG and resizes
// images for thumbnail derivation.
type Converter interface {
	// Convert normalizes the uploaded bytes to a displayable image.
	// Failures are reported as a *Error.
	Convert(ctx context.Context, data []byte, filename string) (Result, error)

	// Resize scales the image down so its width does not exceed
	// maxWidth, preserving aspect ratio. Images at or below maxWidth
	// are re-encoded unchanged in size.
	Resize(ctx context.Context, data []byte, maxWidth int) (Result, error)
}
