package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// MaxSteps is the longest pipeline accepted.
const MaxSteps = 10

// Pipeline is a validated, normalized sequence of operations: between 1 and
// MaxSteps steps, at most one format step, and that step last. Only
// Validator.Pipeline constructs one.
type Pipeline struct {
	steps []core.Params
}

// Steps returns a copy of the normalized steps.
func (p Pipeline) Steps() []core.Params {
	out := make([]core.Params, len(p.steps))
	copy(out, p.steps)
	return out
}

// Len returns the number of steps.
func (p Pipeline) Len() int { return len(p.steps) }

// Pipeline validates raw as a whole. raw may be JSON text (string or []byte)
// or an already decoded []any. Validation is all-or-nothing: on any failure
// no Pipeline is returned.
func (v *Validator) Pipeline(raw any) (Pipeline, error) {
	list, err := decodeList(raw)
	if err != nil {
		return Pipeline{}, err
	}
	if len(list) == 0 {
		return Pipeline{}, invalidPipeline("pipeline cannot be empty")
	}
	if len(list) > MaxSteps {
		return Pipeline{}, invalidPipeline(fmt.Sprintf("pipeline max length is %d steps", MaxSteps))
	}

	steps := make([]core.Params, 0, len(list))
	formats, formatAt := 0, -1
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return Pipeline{}, stepError(apperrors.CodeInvalidPipeline, i, fmt.Sprintf("step[%d] must be an object", i))
		}
		name, ok := obj["op"].(string)
		if !ok || name == "" {
			return Pipeline{}, stepError(apperrors.CodeInvalidPipeline, i, fmt.Sprintf("step[%d].op is required", i))
		}
		kind := core.OperationKind(name)
		if !kind.Valid() {
			return Pipeline{}, stepError(apperrors.CodeUnknownOperation, i, fmt.Sprintf("unknown op '%s' (step[%d])", name, i))
		}

		params, err := v.Params(kind, RawParams(obj))
		if err != nil {
			var pe *apperrors.Error
			if errors.As(err, &pe) {
				return Pipeline{}, pe.AtStep(i)
			}
			return Pipeline{}, err
		}

		if kind == core.OpFormat {
			formats++
			formatAt = i
		}
		steps = append(steps, params)
	}

	if formats > 1 {
		return Pipeline{}, invalidPipeline("only one 'format' operation is allowed")
	}
	if formats == 1 && formatAt != len(steps)-1 {
		return Pipeline{}, invalidPipeline("'format' must be the last step of the pipeline")
	}
	return Pipeline{steps: steps}, nil
}

func decodeList(raw any) ([]any, error) {
	var data []byte
	switch x := raw.(type) {
	case []any:
		return x, nil
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return nil, invalidPipeline("pipeline must be an array")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, invalidPipeline("pipeline must be valid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalidPipeline("pipeline must be valid JSON")
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, invalidPipeline("pipeline must be an array")
	}
	return list, nil
}

func invalidPipeline(msg string) *apperrors.Error {
	return apperrors.Validation(apperrors.CodeInvalidPipeline, "validate.pipeline", msg)
}

func stepError(code apperrors.Code, i int, msg string) *apperrors.Error {
	e := apperrors.Validation(code, "validate.pipeline", msg)
	e.Step = i
	e.HasStep = true
	return e
}
