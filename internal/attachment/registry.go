// Package attachment binds named file attachments to persisted entities,
// tracks pending uploads and deletions, and generates variant files when
// the owning entity is saved.
package attachment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/logging"
	"github.com/dmitrijs2005/paperclip/internal/storage"
	"github.com/dmitrijs2005/paperclip/internal/upload"
	"github.com/dmitrijs2005/paperclip/internal/variant"
)

const defaultWorkers = 4

// Processor renders one variant of an upload.
type Processor interface {
	Process(ctx context.Context, src *upload.File, plan variant.Plan) (*upload.File, error)
}

// Registry holds the attachment descriptors of one entity type together
// with the collaborators their attachments use.
type Registry struct {
	mu          sync.RWMutex
	entityType  string
	order       []string
	descriptors map[string]*Descriptor
	sealed      bool

	disks     *storage.Disks
	processor Processor
	uploads   *upload.Factory
	logger    logging.Logger
	workers   int
	now       func() time.Time
}

type RegistryOption func(*Registry)

func WithDisks(d *storage.Disks) RegistryOption {
	return func(r *Registry) { r.disks = d }
}

func WithProcessor(p Processor) RegistryOption {
	return func(r *Registry) { r.processor = p }
}

func WithUploadFactory(f *upload.Factory) RegistryOption {
	return func(r *Registry) { r.uploads = f }
}

func WithLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithWorkers bounds how many variants of one upload are generated at once.
func WithWorkers(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.workers = n
		}
	}
}

func NewRegistry(entityType string, opts ...RegistryOption) *Registry {
	r := &Registry{
		entityType:  entityType,
		descriptors: make(map[string]*Descriptor),
		uploads:     upload.NewFactory(),
		logger:      logging.NewNop(),
		workers:     defaultWorkers,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) EntityType() string { return r.entityType }

// Register declares an attachment. It fails once the first entity has been
// bound.
func (r *Registry) Register(name string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: %s.%s registered after entities were bound", common.ErrConfiguration, r.entityType, name)
	}
	if name == "" {
		return fmt.Errorf("%w: attachment name is empty", common.ErrConfiguration)
	}
	if _, ok := r.descriptors[name]; ok {
		return fmt.Errorf("%w: %s.%s", common.ErrDuplicateAttachment, r.entityType, name)
	}

	d := Descriptor{Name: name, Options: opts}.clone()
	if err := r.validate(d); err != nil {
		return err
	}

	r.descriptors[name] = &d
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) validate(d Descriptor) error {
	seen := map[string]struct{}{}
	for _, p := range d.Options.Variants {
		switch {
		case p.Name() == "":
			return fmt.Errorf("%w: %s has an unnamed variant", common.ErrConfiguration, d.Name)
		case p.Name() == Original:
			return fmt.Errorf("%w: %s: variant name %q is reserved", common.ErrConfiguration, d.Name, Original)
		}
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: %s declares variant %q twice", common.ErrConfiguration, d.Name, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	if _, ok := d.Plan(d.DefaultVariant()); !ok {
		return fmt.Errorf("%w: %s: default variant %q is not declared", common.ErrConfiguration, d.Name, d.Options.Default)
	}

	if r.disks != nil {
		if _, err := r.disks.Get(d.Options.Disk); err != nil {
			return fmt.Errorf("%w: %s: %v", common.ErrConfiguration, d.Name, err)
		}
	}
	return nil
}

// Get returns a copy of the named descriptor.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s.%s", common.ErrUnknownAttachment, r.entityType, name)
	}
	return d.clone(), nil
}

// Names lists attachments in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Bind seals the registry and creates the attachments of a new entity
// instance, one per descriptor in declaration order.
func (r *Registry) Bind() *Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true

	s := &Set{
		registry: r,
		byName:   make(map[string]*Attachment, len(r.order)),
	}
	for _, name := range r.order {
		a := &Attachment{desc: r.descriptors[name], set: s, state: StateClean}
		s.items = append(s.items, a)
		s.byName[name] = a
	}
	return s
}

func (r *Registry) disk(name string) (storage.Adapter, error) {
	if r.disks == nil {
		return nil, fmt.Errorf("%w: no disks configured", common.ErrUnknownDisk)
	}
	return r.disks.Get(name)
}
