// Package encoder provides the JPEG, PNG and WebP encoders.
package encoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// writeFunc serialises img; quality is already resolved.
type writeFunc func(w io.Writer, img image.Image, quality int, lossless bool) error

// Encoder encodes to one format.
type Encoder struct {
	format core.Format
	write  writeFunc

	// DefaultQuality is used when EncodeOptions.Quality is zero.
	DefaultQuality int
}

func newEncoder(f core.Format, quality int, write writeFunc) *Encoder {
	if quality <= 0 {
		quality = 85
	}
	return &Encoder{format: f, write: write, DefaultQuality: quality}
}

// NewJPEG returns a baseline JPEG encoder.
func NewJPEG(defaultQuality int) *Encoder {
	return newEncoder(core.FormatJPEG, defaultQuality, func(w io.Writer, img image.Image, q int, _ bool) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	})
}

// NewPNG returns a PNG encoder. Lossless selects best compression; quality
// is ignored.
func NewPNG() *Encoder {
	return newEncoder(core.FormatPNG, 0, func(w io.Writer, img image.Image, _ int, lossless bool) error {
		enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
		if lossless {
			enc.CompressionLevel = png.BestCompression
		}
		return enc.Encode(w, img)
	})
}

// NewWebP returns a WebP encoder backed by libwebp (github.com/chai2010/webp).
func NewWebP(defaultQuality int) *Encoder {
	return newEncoder(core.FormatWebP, defaultQuality, func(w io.Writer, img image.Image, q int, lossless bool) error {
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(q)})
	})
}

func (e *Encoder) CanEncode(format core.Format) bool { return format == e.format }

func (e *Encoder) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	op := string(e.format) + ".encode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if img == nil || img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = e.DefaultQuality
	}
	var buf bytes.Buffer
	if err := e.write(&buf, img.Image, quality, opts.Lossless); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return buf.Bytes(), nil
}

// Register installs the JPEG, PNG and WebP encoders on reg.
func Register(reg core.Codecs, defaultQuality int) {
	for _, e := range []*Encoder{NewJPEG(defaultQuality), NewPNG(), NewWebP(defaultQuality)} {
		reg.RegisterEncoder(e.format, e)
	}
}

var _ core.Encoder = (*Encoder)(nil)
