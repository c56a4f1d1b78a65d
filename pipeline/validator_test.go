package pipeline_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/pipeline"
)

func rotateSteps(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = `{"op":"rotate","angle":90}`
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestPipelineValid(t *testing.T) {
	p, err := pipeline.NewValidator(0).Pipeline(`[
		{"op":"resize","width":"800","height":600,"fit":"inside"},
		{"op":"filter","filter":"blur"},
		{"op":"format","format":"webp"}
	]`)
	require.NoError(t, err)
	assert.Equal(t, []core.Params{
		core.ResizeParams{Width: 800, Height: 600, Fit: core.FitInside},
		core.FilterParams{Filter: core.FilterBlur},
		core.FormatParams{Format: core.FormatWebP},
	}, p.Steps())
}

func TestPipelineLength(t *testing.T) {
	v := pipeline.NewValidator(0)

	_, err := v.Pipeline(rotateSteps(0))
	assert.Equal(t, apperrors.CodeInvalidPipeline, apperrors.CodeOf(err))

	_, err = v.Pipeline(rotateSteps(11))
	assert.Equal(t, apperrors.CodeInvalidPipeline, apperrors.CodeOf(err))

	p, err := v.Pipeline(rotateSteps(10))
	require.NoError(t, err)
	assert.Equal(t, 10, p.Len())
}

func TestPipelineStructure(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		code apperrors.Code
		msg  string
	}{
		{"invalid json", `[{"op":`, apperrors.CodeInvalidPipeline, "pipeline must be valid JSON"},
		{"trailing data", `[] []`, apperrors.CodeInvalidPipeline, "pipeline must be valid JSON"},
		{"trailing bracket", `[{"op":"rotate","angle":90}]]`, apperrors.CodeInvalidPipeline, "pipeline must be valid JSON"},
		{"trailing brace", `[{"op":"rotate","angle":90}]}`, apperrors.CodeInvalidPipeline, "pipeline must be valid JSON"},
		{"object", `{"op":"rotate"}`, apperrors.CodeInvalidPipeline, "pipeline must be an array"},
		{"nil", nil, apperrors.CodeInvalidPipeline, "pipeline must be an array"},
		{"non-object step", `[{"op":"rotate","angle":90}, 5]`, apperrors.CodeInvalidPipeline, "step[1] must be an object"},
		{"missing op", `[{"angle":90}]`, apperrors.CodeInvalidPipeline, "step[0].op is required"},
		{"numeric op", `[{"op":7}]`, apperrors.CodeInvalidPipeline, "step[0].op is required"},
		{"unknown op", `[{"op":"rotate","angle":90},{"op":"crop"}]`, apperrors.CodeUnknownOperation, "unknown op 'crop' (step[1])"},
		{"bad step params", `[{"op":"rotate","angle":90},{"op":"resize","width":0,"height":5}]`, apperrors.CodeInvalidParams, "resize.width must be a positive number (step[1])"},
		{"two formats", `[{"op":"format","format":"png"},{"op":"format","format":"jpeg"}]`, apperrors.CodeInvalidPipeline, "only one 'format' operation is allowed"},
		{"format first", `[{"op":"format","format":"png"},{"op":"rotate","angle":90}]`, apperrors.CodeInvalidPipeline, "'format' must be the last step of the pipeline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.NewValidator(0).Pipeline(tt.raw)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			assert.Equal(t, tt.msg, apperrors.Message(err))
		})
	}
}

func TestPipelineStepIndexReported(t *testing.T) {
	_, err := pipeline.NewValidator(0).Pipeline(`[{"op":"rotate","angle":90},{"op":"rotate","angle":90},{"op":"filter","filter":"sepia"}]`)
	pub := apperrors.HTTP(err)
	require.NotNil(t, pub.Step)
	assert.Equal(t, 2, *pub.Step)
}

func TestPipelineFormatPosition(t *testing.T) {
	v := pipeline.NewValidator(0)
	others := []string{`{"op":"rotate","angle":180}`, `{"op":"filter","filter":"sharpen"}`, `{"op":"resize","width":5,"height":5}`}
	format := `{"op":"format","format":"jpeg"}`

	for pos := 0; pos < len(others); pos++ {
		steps := append([]string{}, others[:pos]...)
		steps = append(steps, format)
		steps = append(steps, others[pos:]...)
		_, err := v.Pipeline("[" + strings.Join(steps, ",") + "]")
		assert.Equal(t, apperrors.CodeInvalidPipeline, apperrors.CodeOf(err), "format at %d", pos)
	}

	moved := append(append([]string{}, others...), format)
	p, err := v.Pipeline("[" + strings.Join(moved, ",") + "]")
	require.NoError(t, err)
	assert.Equal(t, core.OpFormat, p.Steps()[p.Len()-1].Kind())
}

func TestPipelineAcceptsDecodedList(t *testing.T) {
	p, err := pipeline.NewValidator(0).Pipeline([]any{
		map[string]any{"op": "rotate", "angle": float64(270)},
	})
	require.NoError(t, err)
	assert.Equal(t, core.RotateParams{Angle: core.Angle270}, p.Steps()[0])
}

func TestPipelineStepsIsCopy(t *testing.T) {
	p, err := pipeline.NewValidator(0).Pipeline(rotateSteps(2))
	require.NoError(t, err)
	steps := p.Steps()
	steps[0] = core.FilterParams{Filter: core.FilterBlur}
	assert.Equal(t, core.OpRotate, p.Steps()[0].Kind(), fmt.Sprint(p.Steps()))
}
