package variant

import (
	"fmt"
	"maps"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// StepType names one transformation kind.
type StepType string

const (
	TypeResize    StepType = "resize"
	TypeCrop      StepType = "crop"
	TypeWatermark StepType = "watermark"
	TypeGrayscale StepType = "grayscale"
	TypeRotate    StepType = "rotate"
)

// Position anchors a crop window or a watermark overlay.
type Position string

const (
	Center      Position = "center"
	TopLeft     Position = "top-left"
	Top         Position = "top"
	TopRight    Position = "top-right"
	Left        Position = "left"
	Right       Position = "right"
	BottomLeft  Position = "bottom-left"
	Bottom      Position = "bottom"
	BottomRight Position = "bottom-right"
)

var positions = map[Position]struct{}{
	Center: {}, TopLeft: {}, Top: {}, TopRight: {}, Left: {},
	Right: {}, BottomLeft: {}, Bottom: {}, BottomRight: {},
}

// Step is a declarative transformation. The set of implementations is
// closed: only the step types in this package satisfy it.
type Step interface {
	StepType() StepType
	// StepOptions returns the parameters that end up in the StepSpec.
	StepOptions() map[string]any
	validate() error
}

// StepSpec is the frozen form of a Step inside a Plan.
type StepSpec struct {
	Type   StepType       `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

func (s StepSpec) clone() StepSpec {
	return StepSpec{Type: s.Type, Params: maps.Clone(s.Params)}
}

// ResizeStep scales the image. A zero dimension preserves aspect ratio.
// With Fit set the image is scaled down to fit the box instead.
type ResizeStep struct {
	Width  int
	Height int
	Fit    bool
}

func (s ResizeStep) StepType() StepType { return TypeResize }

func (s ResizeStep) StepOptions() map[string]any {
	return map[string]any{"width": s.Width, "height": s.Height, "fit": s.Fit}
}

func (s ResizeStep) validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("%w: resize dimensions must not be negative", common.ErrInvalidStepConfig)
	}
	if s.Width == 0 && s.Height == 0 {
		return fmt.Errorf("%w: resize requires width or height", common.ErrInvalidStepConfig)
	}
	if s.Fit && (s.Width == 0 || s.Height == 0) {
		return fmt.Errorf("%w: fit requires both width and height", common.ErrInvalidStepConfig)
	}
	return nil
}

// CropStep cuts a Width x Height window anchored at Anchor.
type CropStep struct {
	Width  int
	Height int
	Anchor Position
}

func (s CropStep) StepType() StepType { return TypeCrop }

func (s CropStep) StepOptions() map[string]any {
	anchor := s.Anchor
	if anchor == "" {
		anchor = Center
	}
	return map[string]any{"width": s.Width, "height": s.Height, "anchor": string(anchor)}
}

func (s CropStep) validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: crop requires positive width and height", common.ErrInvalidStepConfig)
	}
	if _, ok := positions[s.Anchor]; s.Anchor != "" && !ok {
		return fmt.Errorf("%w: unknown crop anchor %q", common.ErrInvalidStepConfig, s.Anchor)
	}
	return nil
}

// GrayscaleStep desaturates the image.
type GrayscaleStep struct{}

func (GrayscaleStep) StepType() StepType          { return TypeGrayscale }
func (GrayscaleStep) StepOptions() map[string]any { return map[string]any{} }
func (GrayscaleStep) validate() error             { return nil }

// RotateStep rotates counter-clockwise by a multiple of 90 degrees.
type RotateStep struct {
	Degrees int
}

func (s RotateStep) StepType() StepType { return TypeRotate }

func (s RotateStep) StepOptions() map[string]any {
	return map[string]any{"degrees": ((s.Degrees % 360) + 360) % 360}
}

func (s RotateStep) validate() error {
	if s.Degrees%90 != 0 {
		return fmt.Errorf("%w: rotate supports multiples of 90 degrees, got %d", common.ErrInvalidStepConfig, s.Degrees)
	}
	return nil
}
