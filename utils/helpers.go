// Package utils holds byte-level helpers shared by the engines and the HTTP
// upload path.
package utils

import (
	"image"
	"math"
	"net/http"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	}
	return formatUnknown
}

// FitSize scales srcW x srcH by a single factor so that it fits inside the
// boxW x boxH box (cover=false) or covers it entirely (cover=true). Results
// are at least 1 pixel on each axis.
func FitSize(srcW, srcH, boxW, boxH int, cover bool) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return boxW, boxH
	}
	rw := float64(boxW) / float64(srcW)
	rh := float64(boxH) / float64(srcH)
	scale := math.Min(rw, rh)
	if cover {
		scale = math.Max(rw, rh)
	}
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	// Snap the constrained axis to the box to avoid off-by-one rounding.
	if scale == rw {
		w = boxW
	}
	if scale == rh {
		h = boxH
	}
	return max(w, 1), max(h, 1)
}

// CoverCrop returns the centered region of src with the aspect ratio of a
// boxW x boxH box. Scaling that region to the box gives a cover fit without
// materializing the oversized intermediate.
func CoverCrop(src image.Rectangle, boxW, boxH int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 || boxW <= 0 || boxH <= 0 {
		return src
	}
	scale := math.Max(float64(boxW)/float64(sw), float64(boxH)/float64(sh))
	cw := min(max(int(math.Round(float64(boxW)/scale)), 1), sw)
	ch := min(max(int(math.Round(float64(boxH)/scale)), 1), sh)
	x0 := src.Min.X + (sw-cw)/2
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
