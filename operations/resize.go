package operations

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/utils"
)

// Resize scales an image into a width x height box according to the fit mode:
//
//	cover   scale to fill the box, crop the overflow (centered)
//	contain scale to fit inside the box, pad the rest transparent
//	fill    stretch to exactly the box
//	inside  scale to fit inside the box, no padding
//	outside scale to cover the box, no cropping
type Resize struct {
	engine *Engine
}

func (r *Resize) Execute(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.ResizeParams)
	if !ok {
		return nil, paramsMismatch("resize", params)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryOperation, "resize", apperrors.ErrInvalidDimensions)
	}
	return r.engine.transform(ctx, "resize", data, func(src image.Image) (image.Image, error) {
		return r.engine.fit(src, p.Width, p.Height, p.FitOrDefault())
	})
}

func (e *Engine) fit(src image.Image, w, h int, mode core.FitMode) (image.Image, error) {
	b := src.Bounds()
	switch mode {
	case core.FitFill:
		return e.scale(src, b, w, h), nil

	case core.FitInside:
		sw, sh := utils.FitSize(b.Dx(), b.Dy(), w, h, false)
		return e.scale(src, b, sw, sh), nil

	case core.FitOutside:
		sw, sh := utils.FitSize(b.Dx(), b.Dy(), w, h, true)
		if limit := e.maxDimension(); sw > limit || sh > limit {
			return nil, OversizeError("resize", sw, sh, limit)
		}
		return e.scale(src, b, sw, sh), nil

	case core.FitContain:
		sw, sh := utils.FitSize(b.Dx(), b.Dy(), w, h, false)
		scaled := e.scale(src, b, sw, sh)
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		off := image.Pt((w-sw)/2, (h-sh)/2)
		draw.Draw(dst, scaled.Bounds().Add(off), scaled, image.Point{}, draw.Src)
		return dst, nil

	default: // cover
		return e.scale(src, utils.CoverCrop(b, w, h), w, h), nil
	}
}

func (e *Engine) maxDimension() int {
	if e.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return e.MaxDimension
}

// OversizeError reports a resize whose output would exceed limit on an axis.
func OversizeError(op string, w, h, limit int) error {
	err := apperrors.InvalidField(apperrors.CodeInvalidParams, op, "fit",
		fmt.Sprintf("Resize result %dx%d exceeds the maximum dimension %d", w, h, limit))
	err.Err = apperrors.ErrInvalidDimensions
	return err
}

// scale resamples the srcRect region of src into a fresh w x h image.
func (e *Engine) scale(src image.Image, srcRect image.Rectangle, w, h int) *image.NRGBA {
	sampler := e.Resampler
	if sampler == nil {
		sampler = xdraw.BiLinear
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sampler.Scale(dst, dst.Bounds(), src, srcRect, xdraw.Src, nil)
	return dst
}

var _ core.Operation = (*Resize)(nil)
