package variant

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// stepKeys lists the parameters each step type understands.
var stepKeys = map[StepType][]string{
	TypeResize:    {"width", "height", "fit"},
	TypeCrop:      {"width", "height", "anchor"},
	TypeWatermark: {"watermark", "position", "opacity"},
	TypeGrayscale: {},
	TypeRotate:    {"degrees"},
}

func paramError(key string, v any, want string) error {
	return fmt.Errorf("%w: parameter %q: %v is not %s", common.ErrInvalidStepConfig, key, v, want)
}

// IntParam reads an integer parameter. Fractional numbers and non-numeric
// strings are rejected; a missing key yields 0.
func (s StepSpec) IntParam(key string) (int, error) {
	switch v := s.Params[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, paramError(key, v, "an integer")
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, paramError(key, v, "an integer")
		}
		return n, nil
	default:
		return 0, paramError(key, v, "an integer")
	}
}

// FloatParam reads a numeric parameter; a missing key yields 0.
func (s StepSpec) FloatParam(key string) (float64, error) {
	switch v := s.Params[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, paramError(key, v, "a number")
		}
		return f, nil
	default:
		return 0, paramError(key, v, "a number")
	}
}

// TextParam reads a string parameter; a missing key yields "".
func (s StepSpec) TextParam(key string) (string, error) {
	switch v := s.Params[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", paramError(key, v, "a string")
	}
}

// BoolParam reads a boolean parameter; a missing key yields false.
func (s StepSpec) BoolParam(key string) (bool, error) {
	switch v := s.Params[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, paramError(key, v, "a boolean")
		}
		return b, nil
	default:
		return false, paramError(key, v, "a boolean")
	}
}

// Int, Float, Text and Bool read parameters of a built plan, whose specs
// were validated when the plan was built.

func (s StepSpec) Int(key string) int {
	n, _ := s.IntParam(key)
	return n
}

func (s StepSpec) Float(key string) float64 {
	f, _ := s.FloatParam(key)
	return f
}

func (s StepSpec) Text(key string) string {
	v, _ := s.TextParam(key)
	return v
}

func (s StepSpec) Bool(key string) bool {
	b, _ := s.BoolParam(key)
	return b
}

// checkKeys rejects parameters the step type does not understand.
func (s StepSpec) checkKeys() error {
	allowed, ok := stepKeys[s.Type]
	if !ok {
		return fmt.Errorf("%w: unknown step type %q", common.ErrInvalidStepConfig, s.Type)
	}
	for _, key := range slices.Sorted(maps.Keys(s.Params)) {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("%w: %s step has no parameter %q", common.ErrInvalidStepConfig, s.Type, key)
		}
	}
	return nil
}
