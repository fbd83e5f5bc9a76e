package attachment

import (
	"fmt"
	"maps"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/variant"
)

// Definition is the declarative (YAML) form of an attachment registration.
type Definition struct {
	Name          string              `yaml:"name"`
	Disk          string              `yaml:"disk"`
	Default       string              `yaml:"default"`
	Path          string              `yaml:"path"`
	DefaultURL    string              `yaml:"default_url"`
	KeepOldFiles  bool                `yaml:"keep_old_files"`
	PreserveFiles bool                `yaml:"preserve_files"`
	Variants      []VariantDefinition `yaml:"variants"`
}

// VariantDefinition lists steps as flat maps: {type: resize, width: 100}.
type VariantDefinition struct {
	Name  string           `yaml:"name"`
	Steps []map[string]any `yaml:"steps"`
}

// Options builds the runtime options, validating every variant plan.
func (d Definition) Options() (Options, error) {
	opts := Options{
		Disk:          d.Disk,
		Default:       d.Default,
		Path:          d.Path,
		DefaultURL:    d.DefaultURL,
		KeepOldFiles:  d.KeepOldFiles,
		PreserveFiles: d.PreserveFiles,
	}

	for _, v := range d.Variants {
		specs := make([]variant.StepSpec, 0, len(v.Steps))
		for i, raw := range v.Steps {
			spec, err := stepSpec(raw)
			if err != nil {
				return Options{}, fmt.Errorf("attachment %q variant %q step %d: %w", d.Name, v.Name, i, err)
			}
			specs = append(specs, spec)
		}

		plan, err := variant.FromSpecs(v.Name, specs)
		if err != nil {
			return Options{}, fmt.Errorf("attachment %q: %w", d.Name, err)
		}
		opts.Variants = append(opts.Variants, plan)
	}
	return opts, nil
}

func stepSpec(raw map[string]any) (variant.StepSpec, error) {
	t, _ := raw["type"].(string)
	if t == "" {
		return variant.StepSpec{}, fmt.Errorf("%w: step without type", common.ErrInvalidStepConfig)
	}

	params := maps.Clone(raw)
	delete(params, "type")
	// "path" reads better than "watermark" in definitions
	if p, ok := params["path"]; ok && variant.StepType(t) == variant.TypeWatermark {
		params["watermark"] = p
		delete(params, "path")
	}
	return variant.StepSpec{Type: variant.StepType(t), Params: params}, nil
}

// RegisterDefinitions registers every definition in order and stops at the
// first error.
func (r *Registry) RegisterDefinitions(defs []Definition) error {
	for _, d := range defs {
		opts, err := d.Options()
		if err != nil {
			return err
		}
		if err := r.Register(d.Name, opts); err != nil {
			return err
		}
	}
	return nil
}
