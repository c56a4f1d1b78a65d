//go:build vips

// Package vips implements the image operations on libvips. Build with
// -tags vips; the pure-Go engine in operations/ is used otherwise.
package vips

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/operations"
	"github.com/Skryldev/image-api/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool

	// BlurSigma and SharpenSigma mirror the pure-Go engine defaults.
	BlurSigma    float64
	SharpenSigma float64
	// MaxDimension caps the output of the outside fit.
	MaxDimension int
}

// Backend runs resize, rotate, filter and format through libvips.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = operations.DefaultMaxDimension
	}
	if cfg.BlurSigma <= 0 {
		cfg.BlurSigma = 1.5
	}
	if cfg.SharpenSigma <= 0 {
		cfg.SharpenSigma = 1.0
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// Operations returns the backend's operation set keyed by kind.
func (b *Backend) Operations() map[core.OperationKind]core.Operation {
	return map[core.OperationKind]core.Operation{
		core.OpResize: core.OperationFunc(b.resize),
		core.OpRotate: core.OperationFunc(b.rotate),
		core.OpFilter: core.OperationFunc(b.filter),
		core.OpFormat: core.OperationFunc(b.convert),
	}
}

// Register binds every libvips operation on reg, replacing what is there.
func Register(reg *core.OperationRegistry, b *Backend) {
	for kind, op := range b.Operations() {
		reg.Register(kind, op)
	}
}

// ─── Operations ───────────────────────────────────────────────────────────────

func (b *Backend) resize(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.ResizeParams)
	if !ok {
		return nil, mismatch("vips.resize", params)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryOperation, "vips.resize", apperrors.ErrInvalidDimensions)
	}
	return b.apply(ctx, "vips.resize", data, core.FormatUnknown, func(ref *govips.ImageRef) error {
		return fit(ref, p.Width, p.Height, p.FitOrDefault(), b.cfg.MaxDimension)
	})
}

func (b *Backend) rotate(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.RotateParams)
	if !ok {
		return nil, mismatch("vips.rotate", params)
	}
	var angle govips.Angle
	switch p.Angle {
	case core.Angle90:
		angle = govips.Angle90
	case core.Angle180:
		angle = govips.Angle180
	case core.Angle270:
		angle = govips.Angle270
	default:
		return nil, apperrors.New(apperrors.CategoryOperation, "vips.rotate", fmt.Errorf("unsupported angle %d", p.Angle))
	}
	return b.apply(ctx, "vips.rotate", data, core.FormatUnknown, func(ref *govips.ImageRef) error {
		return ref.Rotate(angle)
	})
}

func (b *Backend) filter(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.FilterParams)
	if !ok {
		return nil, mismatch("vips.filter", params)
	}
	return b.apply(ctx, "vips.filter", data, core.FormatUnknown, func(ref *govips.ImageRef) error {
		switch p.Filter {
		case core.FilterBlur:
			return ref.GaussianBlur(b.cfg.BlurSigma)
		case core.FilterSharpen:
			return ref.Sharpen(b.cfg.SharpenSigma, 1, 2)
		case core.FilterGrayscale:
			return ref.ToColorSpace(govips.InterpretationBW)
		}
		return fmt.Errorf("unsupported filter %q", p.Filter)
	})
}

func (b *Backend) convert(ctx context.Context, data []byte, params core.Params) ([]byte, error) {
	p, ok := params.(core.FormatParams)
	if !ok {
		return nil, mismatch("vips.format", params)
	}
	return b.apply(ctx, "vips.format", data, p.Format, nil)
}

// apply loads data, runs fn and exports in target, or in the source format
// when target is FormatUnknown.
func (b *Backend) apply(ctx context.Context, op string, data []byte, target core.Format, fn func(*govips.ImageRef) error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryOperation, op, err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	defer ref.Close()

	if target == core.FormatUnknown {
		target = vipsFormatToCore(ref.Format())
	}
	if fn != nil {
		if err := fn(ref); err != nil {
			if apperrors.CodeOf(err) != "" {
				return nil, err
			}
			return nil, apperrors.Wrap(apperrors.CategoryOperation, op, err)
		}
	}
	return b.export(op, ref, target)
}

func (b *Backend) export(op string, ref *govips.ImageRef, f core.Format) ([]byte, error) {
	var (
		buf []byte
		err error
	)
	switch f {
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = b.cfg.DefaultQuality
		buf, _, err = ref.ExportJpeg(ep)
	case core.FormatPNG:
		buf, _, err = ref.ExportPng(govips.NewPngExportParams())
	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = b.cfg.DefaultQuality
		buf, _, err = ref.ExportWebp(ep)
	default:
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return buf, nil
}

// fit applies the same box semantics as the pure-Go engine.
func fit(ref *govips.ImageRef, w, h int, mode core.FitMode, limit int) error {
	sw := float64(w) / float64(ref.Width())
	sh := float64(h) / float64(ref.Height())

	switch mode {
	case core.FitFill:
		return ref.ResizeWithVScale(sw, sh, govips.KernelLanczos3)

	case core.FitInside:
		return ref.Resize(math.Min(sw, sh), govips.KernelLanczos3)

	case core.FitOutside:
		ow, oh := utils.FitSize(ref.Width(), ref.Height(), w, h, true)
		if ow > limit || oh > limit {
			return operations.OversizeError("vips.resize", ow, oh, limit)
		}
		return ref.Resize(math.Max(sw, sh), govips.KernelLanczos3)

	case core.FitContain:
		if err := ref.Resize(math.Min(sw, sh), govips.KernelLanczos3); err != nil {
			return err
		}
		if !ref.HasAlpha() {
			if err := ref.AddAlpha(); err != nil {
				return err
			}
		}
		left := (w - ref.Width()) / 2
		top := (h - ref.Height()) / 2
		return ref.EmbedBackgroundRGBA(left, top, w, h, &govips.ColorRGBA{})

	default: // cover
		crop := utils.CoverCrop(image.Rect(0, 0, ref.Width(), ref.Height()), w, h)
		if err := ref.ExtractArea(crop.Min.X, crop.Min.Y, crop.Dx(), crop.Dy()); err != nil {
			return err
		}
		return ref.ResizeWithVScale(float64(w)/float64(crop.Dx()), float64(h)/float64(crop.Dy()), govips.KernelLanczos3)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	default:
		return core.FormatUnknown
	}
}

func mismatch(op string, p core.Params) error {
	return apperrors.New(apperrors.CategoryOperation, op, fmt.Errorf("unexpected params %T", p))
}
