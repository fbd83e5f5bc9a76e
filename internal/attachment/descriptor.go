package attachment

import (
	"slices"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/variant"
)

// Original names the untouched copy of every upload.
const Original = common.OriginalVariant

// Null, assigned through Set.Set, marks an attachment for deletion.
const Null = common.NullAttachment

// Options configures one attachment.
type Options struct {
	// Disk names the storage.Disks entry; empty means the default disk.
	Disk string
	// Variants are generated in addition to the original, in this order.
	Variants []variant.Plan
	// Default is used when URL or VariantPath get an empty variant name.
	Default string
	// Path is the storage path template, see Interpolate.
	Path string
	// DefaultURL is returned for known variants that were not generated.
	DefaultURL string
	// KeepOldFiles leaves replaced files in storage.
	KeepOldFiles bool
	// PreserveFiles leaves files in storage when the entity is deleted.
	PreserveFiles bool
}

// Descriptor is the immutable registration of one attachment name.
type Descriptor struct {
	Name    string
	Options Options
}

func (d Descriptor) clone() Descriptor {
	d.Options.Variants = slices.Clone(d.Options.Variants)
	return d
}

// VariantNames lists the original followed by the declared variants.
func (d Descriptor) VariantNames() []string {
	names := make([]string, 0, len(d.Options.Variants)+1)
	names = append(names, Original)
	for _, p := range d.Options.Variants {
		names = append(names, p.Name())
	}
	return names
}

// Plan returns the step plan of variant. The original has an empty plan.
func (d Descriptor) Plan(name string) (variant.Plan, bool) {
	if name == Original {
		return variant.Plan{}, true
	}
	for _, p := range d.Options.Variants {
		if p.Name() == name {
			return p, true
		}
	}
	return variant.Plan{}, false
}

// DefaultVariant resolves the fallback variant name.
func (d Descriptor) DefaultVariant() string {
	if d.Options.Default == "" {
		return Original
	}
	return d.Options.Default
}

func (d Descriptor) pathTemplate() string {
	if d.Options.Path == "" {
		return DefaultPathTemplate
	}
	return d.Options.Path
}
