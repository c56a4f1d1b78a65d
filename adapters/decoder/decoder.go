// Package decoder provides the JPEG, PNG and WebP decoders.
package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/webp"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/utils"
)

// DefaultMaxPixels rejects images larger than 10000x10000 before their
// pixel buffers are allocated.
const DefaultMaxPixels = 10000 * 10000

// Decoder decodes one format. The header is read first so oversized images
// fail before the full decode.
type Decoder struct {
	format core.Format
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)

	// MaxPixels bounds width*height; zero disables the check.
	MaxPixels int
}

// NewJPEG returns a JPEG decoder backed by the standard library.
func NewJPEG() *Decoder {
	return &Decoder{format: core.FormatJPEG, decode: jpeg.Decode, config: jpeg.DecodeConfig, MaxPixels: DefaultMaxPixels}
}

// NewPNG returns a PNG decoder backed by the standard library.
func NewPNG() *Decoder {
	return &Decoder{format: core.FormatPNG, decode: png.Decode, config: png.DecodeConfig, MaxPixels: DefaultMaxPixels}
}

// NewWebP returns a still-image WebP decoder (lossy and lossless). Animated
// WebP is not supported.
func NewWebP() *Decoder {
	return &Decoder{format: core.FormatWebP, decode: webp.Decode, config: webp.DecodeConfig, MaxPixels: DefaultMaxPixels}
}

func (d *Decoder) CanDecode(format core.Format) bool { return format == d.format }

func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	op := string(d.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	data, err := utils.ReadAll(ctx, r, 0, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
	}

	cfg, err := d.config(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
		return nil, apperrors.New(apperrors.CategoryDecode, op,
			fmt.Errorf("%w: %dx%d exceeds %d pixels", apperrors.ErrInvalidDimensions, cfg.Width, cfg.Height, d.MaxPixels))
	}

	img, err := d.decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	b := img.Bounds()
	return &core.ImageData{
		Image:  img,
		Format: d.format,
		Meta: core.Metadata{
			Width:     b.Dx(),
			Height:    b.Dy(),
			Format:    d.format,
			HasAlpha:  hasAlpha(img),
			SizeBytes: int64(len(data)),
		},
	}, nil
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

// Register installs the JPEG, PNG and WebP decoders on reg.
func Register(reg core.Codecs) {
	for _, d := range []*Decoder{NewJPEG(), NewPNG(), NewWebP()} {
		reg.RegisterDecoder(d.format, d)
	}
}

var _ core.Decoder = (*Decoder)(nil)
