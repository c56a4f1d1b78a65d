package operations

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// ── Rotate ────────────────────────────────────────────────────────────────────

// Rotate turns an image clockwise by 90, 180 or 270 degrees.
type Rotate struct {
	engine *Engine
}

func (r *Rotate) Execute(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.RotateParams)
	if !ok {
		return nil, paramsMismatch("rotate", params)
	}
	return r.engine.transform(ctx, "rotate", data, func(src image.Image) (image.Image, error) {
		// imaging rotates counter-clockwise.
		switch p.Angle {
		case core.Angle90:
			return imaging.Rotate270(src), nil
		case core.Angle180:
			return imaging.Rotate180(src), nil
		case core.Angle270:
			return imaging.Rotate90(src), nil
		}
		return nil, apperrors.New(apperrors.CategoryOperation, "rotate", fmt.Errorf("unsupported angle %d", p.Angle))
	})
}

// ── Filter ────────────────────────────────────────────────────────────────────

// Filter applies blur, sharpen or grayscale.
type Filter struct {
	engine *Engine
}

func (f *Filter) Execute(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.FilterParams)
	if !ok {
		return nil, paramsMismatch("filter", params)
	}
	e := f.engine
	return e.transform(ctx, "filter", data, func(src image.Image) (image.Image, error) {
		switch p.Filter {
		case core.FilterBlur:
			return imaging.Blur(src, e.BlurSigma), nil
		case core.FilterSharpen:
			return imaging.Sharpen(src, e.SharpenSigma), nil
		case core.FilterGrayscale:
			return imaging.Grayscale(src), nil
		}
		return nil, apperrors.New(apperrors.CategoryOperation, "filter", fmt.Errorf("unsupported filter %q", p.Filter))
	})
}

// ── Format conversion ─────────────────────────────────────────────────────────

// Convert re-encodes an image in the requested format.
type Convert struct {
	engine *Engine
}

func (c *Convert) Execute(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.FormatParams)
	if !ok {
		return nil, paramsMismatch("format", params)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryOperation, "format", err)
	}
	src, err := c.engine.decode(ctx, "format", data)
	if err != nil {
		return nil, err
	}
	return c.engine.encode(ctx, "format", src.Image, p.Format)
}

var (
	_ core.Operation = (*Rotate)(nil)
	_ core.Operation = (*Filter)(nil)
	_ core.Operation = (*Convert)(nil)
)
