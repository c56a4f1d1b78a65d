package decoder_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-api/adapters/decoder"
	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	data := pngBytes(t, 12, 7)
	img, err := decoder.NewPNG().Decode(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, img.Format)
	assert.Equal(t, 12, img.Meta.Width)
	assert.Equal(t, 7, img.Meta.Height)
	assert.True(t, img.Meta.HasAlpha)
	assert.Equal(t, int64(len(data)), img.Meta.SizeBytes)
}

func TestDecodeRejectsOversized(t *testing.T) {
	d := decoder.NewPNG()
	d.MaxPixels = 50

	_, err := d.Decode(context.Background(), bytes.NewReader(pngBytes(t, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDimensions)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))
}

func TestDecodeErrors(t *testing.T) {
	ctx := context.Background()
	_, err := decoder.NewJPEG().Decode(ctx, bytes.NewReader(nil))
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

	_, err = decoder.NewWebP().Decode(ctx, bytes.NewReader([]byte("RIFF0000WEBPjunk")))
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))

	assert.True(t, decoder.NewWebP().CanDecode(core.FormatWebP))
	assert.False(t, decoder.NewWebP().CanDecode(core.FormatPNG))
}
