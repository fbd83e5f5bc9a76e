// Package variant declares how derived renderings of an upload are
// produced: a Builder accumulates an ordered list of steps for one variant
// name and Build freezes them into an immutable Plan.
package variant

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// Builder accumulates steps for a single named variant. Steps are applied
// in the order they were added.
type Builder struct {
	name  string
	steps []Step
}

// New starts a plan for the named variant.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Step appends an arbitrary step.
func (b *Builder) Step(s Step) *Builder {
	b.steps = append(b.steps, s)
	return b
}

func (b *Builder) Resize(width, height int) *Builder {
	return b.Step(ResizeStep{Width: width, Height: height})
}

// Fit scales the image down so it fits within width x height.
func (b *Builder) Fit(width, height int) *Builder {
	return b.Step(ResizeStep{Width: width, Height: height, Fit: true})
}

func (b *Builder) Crop(width, height int, anchor Position) *Builder {
	return b.Step(CropStep{Width: width, Height: height, Anchor: anchor})
}

func (b *Builder) Watermark(w *WatermarkStep) *Builder {
	return b.Step(w)
}

func (b *Builder) Grayscale() *Builder {
	return b.Step(GrayscaleStep{})
}

func (b *Builder) Rotate(degrees int) *Builder {
	return b.Step(RotateStep{Degrees: degrees})
}

// Build validates every step and returns the frozen plan.
func (b *Builder) Build() (Plan, error) {
	if b.name == "" {
		return Plan{}, fmt.Errorf("%w: variant name is empty", common.ErrInvalidStepConfig)
	}

	specs := make([]StepSpec, 0, len(b.steps))
	for i, s := range b.steps {
		if s == nil {
			return Plan{}, fmt.Errorf("%w: variant %q step %d is nil", common.ErrInvalidStepConfig, b.name, i)
		}
		if err := s.validate(); err != nil {
			return Plan{}, fmt.Errorf("variant %q step %d: %w", b.name, i, err)
		}
		specs = append(specs, StepSpec{Type: s.StepType(), Params: s.StepOptions()})
	}

	return Plan{name: b.name, steps: specs}, nil
}

// MustBuild is Build for static configuration; it panics on error.
func (b *Builder) MustBuild() Plan {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Plan is an immutable, ordered sequence of step specs for one variant.
type Plan struct {
	name  string
	steps []StepSpec
}

func (p Plan) Name() string { return p.name }

func (p Plan) Len() int { return len(p.steps) }

// Steps returns a copy of the step specs.
func (p Plan) Steps() []StepSpec {
	out := make([]StepSpec, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.clone()
	}
	return out
}

// FromSpecs rebuilds a plan from loose specs (e.g. decoded from YAML),
// running them through the same validation as the fluent builder.
func FromSpecs(name string, specs []StepSpec) (Plan, error) {
	b := New(name)
	for i, spec := range specs {
		s, err := stepFromSpec(spec)
		if err != nil {
			return Plan{}, fmt.Errorf("variant %q step %d: %w", name, i, err)
		}
		b.Step(s)
	}
	return b.Build()
}

func stepFromSpec(spec StepSpec) (Step, error) {
	if err := spec.checkKeys(); err != nil {
		return nil, err
	}

	var errs []error
	intParam := func(key string) int {
		n, err := spec.IntParam(key)
		errs = append(errs, err)
		return n
	}
	textParam := func(key string) string {
		v, err := spec.TextParam(key)
		errs = append(errs, err)
		return v
	}

	var step Step
	switch spec.Type {
	case TypeResize:
		fit, err := spec.BoolParam("fit")
		errs = append(errs, err)
		step = ResizeStep{Width: intParam("width"), Height: intParam("height"), Fit: fit}
	case TypeCrop:
		step = CropStep{Width: intParam("width"), Height: intParam("height"), Anchor: Position(textParam("anchor"))}
	case TypeWatermark:
		w := Watermark().Path(textParam("watermark")).Position(Position(textParam("position")))
		if _, ok := spec.Params["opacity"]; ok {
			opacity, err := spec.FloatParam("opacity")
			errs = append(errs, err)
			w.Opacity(opacity)
		}
		step = w
	case TypeGrayscale:
		step = GrayscaleStep{}
	case TypeRotate:
		step = RotateStep{Degrees: intParam("degrees")}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return step, nil
}
