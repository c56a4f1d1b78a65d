package operations_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-api/adapters/decoder"
	"github.com/Skryldev/image-api/adapters/encoder"
	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/operations"
	"github.com/Skryldev/image-api/utils"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func newEngine() *operations.Engine {
	codecs := core.NewCodecRegistry()
	decoder.Register(codecs)
	encoder.Register(codecs, 90)
	return operations.NewEngine(codecs, 90)
}

func newPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func bounds(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func execute(t *testing.T, kind core.OperationKind, data []byte, p core.Params) []byte {
	t.Helper()
	out, err := newEngine().Operations()[kind].Execute(context.Background(), data, p)
	require.NoError(t, err)
	return out
}

// ── resize ────────────────────────────────────────────────────────────────────

func TestResizeFitModes(t *testing.T) {
	src := newPNG(t, 200, 100)
	tests := []struct {
		fit          core.FitMode
		wantW, wantH int
	}{
		{"", 100, 100},
		{core.FitCover, 100, 100},
		{core.FitContain, 100, 100},
		{core.FitFill, 100, 100},
		{core.FitInside, 100, 50},
		{core.FitOutside, 200, 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.fit), func(t *testing.T) {
			out := execute(t, core.OpResize, src, core.ResizeParams{Width: 100, Height: 100, Fit: tt.fit})
			w, h := bounds(t, out)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, "png", utils.DetectFormat(out), "resize keeps the source format")
		})
	}
}

func TestResizeContainPadsTransparent(t *testing.T) {
	out := execute(t, core.OpResize, newPNG(t, 200, 100), core.ResizeParams{Width: 100, Height: 100, Fit: core.FitContain})
	img := decodePNG(t, out)
	_, _, _, a := img.At(50, 5).RGBA()
	assert.Zero(t, a, "padding row must be transparent")
	_, _, _, a = img.At(50, 50).RGBA()
	assert.NotZero(t, a)
}

func TestResizeSkewedAspect(t *testing.T) {
	wide := newPNG(t, 2000, 1)

	out := execute(t, core.OpResize, wide, core.ResizeParams{Width: 100, Height: 100, Fit: core.FitCover})
	w, h := bounds(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	out = execute(t, core.OpResize, newPNG(t, 1, 2000), core.ResizeParams{Width: 100, Height: 100})
	w, h = bounds(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	out = execute(t, core.OpResize, wide, core.ResizeParams{Width: 100, Height: 100, Fit: core.FitInside})
	w, h = bounds(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 1, h)
}

func TestResizeCoverKeepsCenter(t *testing.T) {
	// Left and right thirds blue, middle third red.
	img := image.NewNRGBA(image.Rect(0, 0, 300, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			c := color.NRGBA{B: 255, A: 255}
			if x >= 100 && x < 200 {
				c = color.NRGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out := decodePNG(t, execute(t, core.OpResize, buf.Bytes(), core.ResizeParams{Width: 50, Height: 50, Fit: core.FitCover}))
	for _, pt := range []image.Point{{2, 25}, {25, 25}, {47, 25}} {
		r, _, b, _ := out.At(pt.X, pt.Y).RGBA()
		assert.Greater(t, r, b, "pixel %v", pt)
	}
}

func TestResizeOutsideRejectsOversizedResult(t *testing.T) {
	_, err := newEngine().Operations()[core.OpResize].Execute(context.Background(),
		newPNG(t, 100, 1), core.ResizeParams{Width: 200, Height: 200, Fit: core.FitOutside})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParams, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, apperrors.ErrInvalidDimensions)
	assert.Equal(t, 400, apperrors.HTTP(err).Status)

	e := newEngine()
	e.MaxDimension = 150
	_, err = e.Operations()[core.OpResize].Execute(context.Background(),
		newPNG(t, 200, 100), core.ResizeParams{Width: 100, Height: 100, Fit: core.FitOutside})
	assert.Equal(t, apperrors.CodeInvalidParams, apperrors.CodeOf(err))
}

func TestResizeKeepsJPEG(t *testing.T) {
	out := execute(t, core.OpResize, newRedJPEG(t, 64, 32), core.ResizeParams{Width: 16, Height: 16, Fit: core.FitFill})
	assert.Equal(t, "jpeg", utils.DetectFormat(out))
	w, h := bounds(t, out)
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)
}

// ── rotate ────────────────────────────────────────────────────────────────────

func TestRotateClockwise(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 0, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out := decodePNG(t, execute(t, core.OpRotate, buf.Bytes(), core.RotateParams{Angle: core.Angle90}))
	require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r, "left pixel moves to the top")
	_, _, b, _ := out.At(0, 1).RGBA()
	assert.Equal(t, uint32(0xffff), b)
}

func TestRotateDimensions(t *testing.T) {
	src := newPNG(t, 100, 50)
	for _, tt := range []struct {
		angle        core.Angle
		wantW, wantH int
	}{
		{core.Angle90, 50, 100},
		{core.Angle180, 100, 50},
		{core.Angle270, 50, 100},
	} {
		w, h := bounds(t, execute(t, core.OpRotate, src, core.RotateParams{Angle: tt.angle}))
		assert.Equal(t, tt.wantW, w, "angle %d", tt.angle)
		assert.Equal(t, tt.wantH, h, "angle %d", tt.angle)
	}
}

// ── filter / format ───────────────────────────────────────────────────────────

func TestFilters(t *testing.T) {
	src := newPNG(t, 32, 32)
	for _, f := range []core.FilterName{core.FilterBlur, core.FilterSharpen, core.FilterGrayscale} {
		out := execute(t, core.OpFilter, src, core.FilterParams{Filter: f})
		w, h := bounds(t, out)
		assert.Equal(t, 32, w, string(f))
		assert.Equal(t, 32, h, string(f))
	}

	gray := decodePNG(t, execute(t, core.OpFilter, src, core.FilterParams{Filter: core.FilterGrayscale}))
	r, g, b, _ := gray.At(10, 20).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestFormatConversion(t *testing.T) {
	src := newRedJPEG(t, 20, 10)
	for _, f := range []core.Format{core.FormatPNG, core.FormatWebP, core.FormatJPEG} {
		out := execute(t, core.OpFormat, src, core.FormatParams{Format: f})
		assert.Equal(t, string(f), utils.DetectFormat(out))
	}
}

// ── failures ──────────────────────────────────────────────────────────────────

func TestGarbageInput(t *testing.T) {
	_, err := newEngine().Operations()[core.OpRotate].Execute(context.Background(), []byte("not an image"), core.RotateParams{Angle: core.Angle90})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))
}

func TestMisregisteredCodecRejected(t *testing.T) {
	codecs := core.NewCodecRegistry()
	codecs.RegisterDecoder(core.FormatPNG, decoder.NewJPEG())
	encoder.Register(codecs, 90)
	e := operations.NewEngine(codecs, 90)

	_, err := e.Operations()[core.OpRotate].Execute(context.Background(), newPNG(t, 4, 4), core.RotateParams{Angle: core.Angle90})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	codecs = core.NewCodecRegistry()
	decoder.Register(codecs)
	codecs.RegisterEncoder(core.FormatWebP, encoder.NewPNG())
	_, err = operations.NewEngine(codecs, 90).Operations()[core.OpFormat].Execute(context.Background(),
		newPNG(t, 4, 4), core.FormatParams{Format: core.FormatWebP})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestParamsMismatch(t *testing.T) {
	_, err := newEngine().Operations()[core.OpResize].Execute(context.Background(), newPNG(t, 4, 4), core.RotateParams{Angle: core.Angle90})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryOperation))
}

func TestRegister(t *testing.T) {
	reg := core.NewOperationRegistry()
	operations.Register(reg, newEngine())
	assert.ElementsMatch(t, core.Kinds, reg.Kinds())
}
