// Package operations implements the image operations in pure Go on top of the
// registered codecs.
package operations

import (
	"bytes"
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/utils"
)

// DefaultMaxDimension caps either axis of a resize result.
const DefaultMaxDimension = 10000

// Engine decodes input bytes, applies one transformation and re-encodes the
// result. Every operation except format keeps the source format.
type Engine struct {
	codecs core.Codecs
	opts   core.EncodeOptions

	// Resampler controls resize quality vs speed. Defaults to draw.BiLinear.
	Resampler xdraw.Interpolator
	// BlurSigma is the gaussian sigma used by the blur filter.
	BlurSigma float64
	// SharpenSigma is the sigma used by the sharpen filter.
	SharpenSigma float64
	// MaxDimension caps the output of the outside fit. Defaults to
	// DefaultMaxDimension.
	MaxDimension int
}

// NewEngine returns an Engine encoding with the given default quality.
func NewEngine(codecs core.Codecs, quality int) *Engine {
	return &Engine{
		codecs:       codecs,
		opts:         core.EncodeOptions{Quality: quality},
		Resampler:    xdraw.BiLinear,
		BlurSigma:    1.5,
		SharpenSigma: 1.0,
		MaxDimension: DefaultMaxDimension,
	}
}

// Operations returns the engine's operation set keyed by kind.
func (e *Engine) Operations() map[core.OperationKind]core.Operation {
	return map[core.OperationKind]core.Operation{
		core.OpResize: &Resize{engine: e},
		core.OpRotate: &Rotate{engine: e},
		core.OpFilter: &Filter{engine: e},
		core.OpFormat: &Convert{engine: e},
	}
}

// Register binds every engine operation on reg.
func Register(reg *core.OperationRegistry, e *Engine) {
	for kind, op := range e.Operations() {
		reg.Register(kind, op)
	}
}

func (e *Engine) decode(ctx context.Context, op string, data []byte) (*core.ImageData, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
	}
	f := core.Format(utils.DetectFormat(data))
	dec, ok := e.codecs.DecoderFor(f)
	if !ok || !dec.CanDecode(f) {
		return nil, apperrors.New(apperrors.CategoryDecode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f))
	}
	img, err := dec.Decode(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	img.Meta.SizeBytes = int64(len(data))
	return img, nil
}

func (e *Engine) encode(ctx context.Context, op string, img image.Image, f core.Format) ([]byte, error) {
	enc, ok := e.codecs.EncoderFor(f)
	if !ok || !enc.CanEncode(f) {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f))
	}
	b := img.Bounds()
	return enc.Encode(ctx, &core.ImageData{
		Image:  img,
		Format: f,
		Meta:   core.Metadata{Width: b.Dx(), Height: b.Dy(), Format: f},
	}, e.opts)
}

// transform runs decode, fn and encode in the source format.
func (e *Engine) transform(ctx context.Context, op string, data []byte, fn func(image.Image) (image.Image, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryOperation, op, err)
	}
	src, err := e.decode(ctx, op, data)
	if err != nil {
		return nil, err
	}
	out, err := fn(src.Image)
	if err != nil {
		return nil, err
	}
	return e.encode(ctx, op, out, src.Format)
}

func paramsMismatch(op string, p core.Params) error {
	return apperrors.New(apperrors.CategoryOperation, op, fmt.Errorf("unexpected params %T", p))
}
