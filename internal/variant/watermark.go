package variant

import (
	"fmt"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// WatermarkStep overlays an image resource onto the variant. It is
// configured incrementally and only checked when the plan is built:
//
//	variant.Watermark().Path("mark.png").Position(variant.BottomRight).Opacity(0.4)
type WatermarkStep struct {
	path     string
	position Position
	opacity  *float64
}

// Watermark starts a watermark step.
func Watermark() *WatermarkStep {
	return &WatermarkStep{}
}

func (w *WatermarkStep) Path(path string) *WatermarkStep {
	w.path = path
	return w
}

func (w *WatermarkStep) Position(position Position) *WatermarkStep {
	w.position = position
	return w
}

func (w *WatermarkStep) Opacity(opacity float64) *WatermarkStep {
	w.opacity = &opacity
	return w
}

func (w *WatermarkStep) StepType() StepType { return TypeWatermark }

func (w *WatermarkStep) StepOptions() map[string]any {
	position := w.position
	if position == "" {
		position = BottomRight
	}
	opacity := 1.0
	if w.opacity != nil {
		opacity = *w.opacity
	}
	return map[string]any{
		"watermark": w.path,
		"position":  string(position),
		"opacity":   opacity,
	}
}

func (w *WatermarkStep) validate() error {
	if w.path == "" {
		return fmt.Errorf("%w: watermark requires a path", common.ErrInvalidStepConfig)
	}
	if _, ok := positions[w.position]; w.position != "" && !ok {
		return fmt.Errorf("%w: unknown watermark position %q", common.ErrInvalidStepConfig, w.position)
	}
	if w.opacity != nil && (*w.opacity < 0 || *w.opacity > 1) {
		return fmt.Errorf("%w: watermark opacity %v outside [0,1]", common.ErrInvalidStepConfig, *w.opacity)
	}
	return nil
}
