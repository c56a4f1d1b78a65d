package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// RawParams is an operation's parameter set as submitted: form values arrive
// as strings, pipeline JSON values as json.Number, strings or other JSON types.
type RawParams map[string]any

// DefaultMaxDimension caps resize width and height.
const DefaultMaxDimension = 10000

// Validator turns raw parameters and pipelines into typed, normalized values.
// The zero value is usable and applies DefaultMaxDimension.
type Validator struct {
	MaxDimension int
}

// NewValidator returns a Validator capping resize dimensions at maxDimension
// (DefaultMaxDimension when <= 0).
func NewValidator(maxDimension int) *Validator {
	return &Validator{MaxDimension: maxDimension}
}

func (v *Validator) maxDimension() int {
	if v == nil || v.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return v.MaxDimension
}

// Params validates raw against the rules of kind.
func (v *Validator) Params(kind core.OperationKind, raw RawParams) (core.Params, error) {
	switch kind {
	case core.OpResize:
		return v.Resize(raw)
	case core.OpRotate:
		return v.Rotate(raw)
	case core.OpFilter:
		return v.Filter(raw)
	case core.OpFormat:
		return v.Format(raw)
	}
	return nil, apperrors.Validation(apperrors.CodeUnknownOperation, "validate.params",
		fmt.Sprintf("unknown op '%s'", kind))
}

// Resize validates width, height and the optional fit mode.
func (v *Validator) Resize(raw RawParams) (core.ResizeParams, error) {
	w, err := v.dimension(raw, "width")
	if err != nil {
		return core.ResizeParams{}, err
	}
	h, err := v.dimension(raw, "height")
	if err != nil {
		return core.ResizeParams{}, err
	}

	out := core.ResizeParams{Width: w, Height: h}
	fit, _ := text(raw["fit"])
	if fit = strings.TrimSpace(fit); fit == "" {
		return out, nil
	}
	switch mode := core.FitMode(strings.ToLower(fit)); mode {
	case core.FitCover, core.FitContain, core.FitFill, core.FitInside, core.FitOutside:
		out.Fit = mode
		return out, nil
	}
	return core.ResizeParams{}, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.resize", "fit",
		"resize.fit must be one of cover, contain, fill, inside, outside")
}

func (v *Validator) dimension(raw RawParams, field string) (int, error) {
	if missing(raw[field]) {
		return 0, apperrors.InvalidField(apperrors.CodeMissingParams, "validate.resize", field,
			fmt.Sprintf("resize.%s is required", field))
	}
	n, ok := number(raw[field])
	if !ok || n <= 0 {
		return 0, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.resize", field,
			fmt.Sprintf("resize.%s must be a positive number", field))
	}
	px := int(math.Max(1, math.Round(n)))
	if px > v.maxDimension() {
		return 0, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.resize", field,
			fmt.Sprintf("resize.%s must not exceed %d", field, v.maxDimension()))
	}
	return px, nil
}

// Rotate validates a clockwise angle of exactly 90, 180 or 270.
func (v *Validator) Rotate(raw RawParams) (core.RotateParams, error) {
	if missing(raw["angle"]) {
		return core.RotateParams{}, apperrors.InvalidField(apperrors.CodeMissingParams, "validate.rotate", "angle",
			"rotate.angle is required")
	}
	n, ok := number(raw["angle"])
	if ok {
		switch a := core.Angle(n); {
		case float64(a) != n:
		case a == core.Angle90, a == core.Angle180, a == core.Angle270:
			return core.RotateParams{Angle: a}, nil
		}
	}
	return core.RotateParams{}, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.rotate", "angle",
		"rotate.angle must be 90, 180 or 270")
}

// Filter validates the filter name, case-insensitively.
func (v *Validator) Filter(raw RawParams) (core.FilterParams, error) {
	name, present := text(raw["filter"])
	if !present || strings.TrimSpace(name) == "" {
		return core.FilterParams{}, apperrors.InvalidField(apperrors.CodeMissingParams, "validate.filter", "filter",
			"filter.filter is required")
	}
	switch f := core.FilterName(strings.ToLower(strings.TrimSpace(name))); f {
	case core.FilterBlur, core.FilterSharpen, core.FilterGrayscale:
		return core.FilterParams{Filter: f}, nil
	}
	return core.FilterParams{}, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.filter", "filter",
		"filter.filter must be blur, sharpen or grayscale")
}

// Format validates the target format, case-insensitively.
func (v *Validator) Format(raw RawParams) (core.FormatParams, error) {
	name, present := text(raw["format"])
	if !present || strings.TrimSpace(name) == "" {
		return core.FormatParams{}, apperrors.InvalidField(apperrors.CodeMissingParams, "validate.format", "format",
			"format.format is required")
	}
	switch f := core.Format(strings.ToLower(strings.TrimSpace(name))); f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP:
		return core.FormatParams{Format: f}, nil
	}
	return core.FormatParams{}, apperrors.InvalidField(apperrors.CodeInvalidParams, "validate.format", "format",
		"format.format must be jpeg, png or webp")
}

// ── coercion ──────────────────────────────────────────────────────────────────

func missing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// number coerces v to a finite float64. Strings are trimmed and parsed.
func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// text renders v as a string; present is false for nil.
func text(v any) (s string, present bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return fmt.Sprint(v), true
}
