package attachment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/storage"
	"github.com/dmitrijs2005/paperclip/internal/upload"
	"golang.org/x/sync/errgroup"
)

// State is the position of an attachment in its save/delete lifecycle.
type State int

const (
	StateClean State = iota
	StatePendingUpload
	StateProcessed
	StatePendingDeletion
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StatePendingUpload:
		return "pending_upload"
	case StateProcessed:
		return "processed"
	case StatePendingDeletion:
		return "pending_deletion"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Attachable is implemented by entities that own attachments.
type Attachable interface {
	AttachableType() string
	// AttachableID is empty until the entity has been inserted.
	AttachableID() string
	Attachments() *Set
	// WriteAttachmentMetadata persists meta (nil clears it) on the entity
	// record.
	WriteAttachmentMetadata(ctx context.Context, name string, meta *Metadata) error
}

// Attachment is the runtime state of one named attachment of one entity.
// It carries at most one pending action: an upload or a deletion.
type Attachment struct {
	desc  *Descriptor
	set   *Set
	state State

	pending  *upload.File
	deleting bool
	meta     *Metadata

	// paths captured by BeforeDelete
	doomed map[string]string
}

func (a *Attachment) Name() string { return a.desc.Name }

func (a *Attachment) State() State { return a.state }

// Pending returns the upload waiting for the next save, if any.
func (a *Attachment) Pending() *upload.File { return a.pending }

// Metadata returns a copy of the recorded metadata or nil.
func (a *Attachment) Metadata() *Metadata { return a.meta.Clone() }

// Exists reports whether an original file is recorded.
func (a *Attachment) Exists() bool { return a.meta.Path(Original) != "" }

func (a *Attachment) OriginalFilename() string {
	if a.meta == nil {
		return ""
	}
	return a.meta.FileName
}

func (a *Attachment) Size() int64 {
	if a.meta == nil {
		return 0
	}
	return a.meta.FileSize
}

func (a *Attachment) ContentType() string {
	if a.meta == nil {
		return ""
	}
	return a.meta.ContentType
}

func (a *Attachment) Fingerprint() string {
	if a.meta == nil {
		return ""
	}
	return a.meta.Fingerprint
}

func (a *Attachment) UpdatedAt() time.Time {
	if a.meta == nil {
		return time.Time{}
	}
	return a.meta.UpdatedAt
}

// SetUploadedFile records f for the next save and drops a pending deletion.
// Storage is not touched.
func (a *Attachment) SetUploadedFile(f *upload.File) {
	a.pending = f
	a.deleting = false
	a.state = StatePendingUpload
	a.set.MarkUpdated()
}

// SetToBeDeleted schedules removal of all files on the next save and drops
// a pending upload.
func (a *Attachment) SetToBeDeleted() {
	a.pending = nil
	a.deleting = true
	a.state = StatePendingDeletion
	a.set.MarkUpdated()
}

// AfterSave carries out the pending action. Variant metadata is recorded
// only when every variant was written; the entity must have an id.
func (a *Attachment) AfterSave(ctx context.Context, entity Attachable) error {
	switch {
	case a.pending != nil:
		return a.flushUpload(ctx, entity)
	case a.deleting:
		return a.flushDeletion(ctx, entity)
	default:
		return nil
	}
}

type variantError struct {
	variant string
	err     error
}

func (e *variantError) Error() string { return fmt.Sprintf("variant %q: %v", e.variant, e.err) }
func (e *variantError) Unwrap() error { return e.err }

func (a *Attachment) flushUpload(ctx context.Context, entity Attachable) error {
	reg := a.set.registry
	log := reg.logger.With("entity", entity.AttachableType(), "attachment", a.Name())

	id := entity.AttachableID()
	if id == "" {
		return &ProcessingError{Attachment: a.Name(), Err: common.ErrNoIdentifier}
	}

	disk, err := reg.disk(a.desc.Options.Disk)
	if err != nil {
		return &ProcessingError{Attachment: a.Name(), Err: err}
	}

	start := time.Now()
	src := a.pending
	names := a.desc.VariantNames()
	infos := make([]VariantInfo, len(names))
	live := livePaths(a.meta)

	var mu sync.Mutex
	var written []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reg.workers)

	for i, name := range names {
		g.Go(func() error {
			out, err := a.render(gctx, src, name)
			if err != nil {
				return &variantError{variant: name, err: err}
			}

			p := Interpolate(a.desc.pathTemplate(), PathParams{
				Class:       entity.AttachableType(),
				ID:          id,
				Attachment:  a.Name(),
				Variant:     name,
				FileName:    out.Name(),
				Fingerprint: src.Fingerprint(),
			})
			if _, ok := live[p]; ok {
				p = stagedPath(p, src.Fingerprint())
			}

			stored, err := disk.Write(gctx, p, out.Open(), out.ContentType())
			if err != nil {
				return &variantError{variant: name, err: err}
			}

			mu.Lock()
			written = append(written, stored)
			mu.Unlock()

			infos[i] = VariantInfo{Path: stored, ContentType: out.ContentType(), Size: out.Size()}
			variantsProcessed.WithLabelValues(a.Name(), name).Inc()
			return nil
		})
	}

	err = g.Wait()
	written = orphaned(written, live)
	if err != nil {
		pe := &ProcessingError{Attachment: a.Name(), Orphans: written, Err: err}
		var ve *variantError
		if errors.As(err, &ve) {
			pe.Variant = ve.variant
			pe.Err = ve.err
		}
		processingFailures.WithLabelValues(a.Name()).Inc()
		log.Error(ctx, "variant generation failed", "variant", pe.Variant, "orphans", written, "error", pe.Err)
		return pe
	}
	processingDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())

	meta := &Metadata{
		FileName:    src.Name(),
		ContentType: src.ContentType(),
		FileSize:    src.Size(),
		Fingerprint: src.Fingerprint(),
		UpdatedAt:   reg.now().UTC(),
		Variants:    make(map[string]VariantInfo, len(names)),
	}
	for i, name := range names {
		meta.Variants[name] = infos[i]
	}

	old := a.meta
	a.meta = meta
	a.state = StateProcessed

	if err := entity.WriteAttachmentMetadata(ctx, a.Name(), meta.Clone()); err != nil {
		a.meta = old
		a.state = StatePendingUpload
		processingFailures.WithLabelValues(a.Name()).Inc()
		log.Error(ctx, "metadata write failed", "orphans", written, "error", err)
		return &ProcessingError{Attachment: a.Name(), Orphans: written, Err: err}
	}

	if !a.desc.Options.KeepOldFiles {
		a.removeReplaced(ctx, disk, old, meta)
	}

	a.pending = nil
	a.state = StateClean
	log.Info(ctx, "attachment processed", "file", meta.FileName, "variants", len(names))
	return nil
}

// render produces the file stored for one variant.
func (a *Attachment) render(ctx context.Context, src *upload.File, name string) (*upload.File, error) {
	plan, _ := a.desc.Plan(name)
	if plan.Len() == 0 {
		return src, nil
	}

	proc := a.set.registry.processor
	if proc == nil {
		return nil, errors.New("no processor configured")
	}
	return proc.Process(ctx, src, plan)
}

// removeReplaced deletes files of old that meta no longer references.
func (a *Attachment) removeReplaced(ctx context.Context, disk storage.Adapter, old, meta *Metadata) {
	if old == nil {
		return
	}

	keep := make(map[string]struct{}, len(meta.Variants))
	for _, v := range meta.Variants {
		keep[v.Path] = struct{}{}
	}

	for _, name := range sortedVariants(old) {
		p := old.Variants[name].Path
		if _, ok := keep[p]; ok || p == "" {
			continue
		}
		if err := disk.Delete(ctx, p); err != nil {
			storageDeleteFailures.WithLabelValues(a.Name()).Inc()
			a.set.registry.logger.Warn(ctx, "failed to remove replaced file", "attachment", a.Name(), "variant", name, "path", p, "error", err)
		}
	}
}

func (a *Attachment) flushDeletion(ctx context.Context, entity Attachable) error {
	reg := a.set.registry

	old := a.meta
	a.meta = nil
	if err := entity.WriteAttachmentMetadata(ctx, a.Name(), nil); err != nil {
		a.meta = old
		return fmt.Errorf("attachment %q: clear metadata: %w", a.Name(), err)
	}

	a.deleting = false
	a.state = StateDeleted

	if old == nil || a.desc.Options.PreserveFiles {
		return nil
	}

	disk, err := reg.disk(a.desc.Options.Disk)
	if err != nil {
		reg.logger.Warn(ctx, "files of deleted attachment left in storage", "attachment", a.Name(), "error", err)
		return nil
	}

	if err := a.deleteFiles(ctx, disk, paths(old)); err != nil {
		reg.logger.Warn(ctx, "failed to remove attachment files", "attachment", a.Name(), "error", err)
	}
	return nil
}

// BeforeDelete resolves the disk and captures the paths AfterDelete will
// remove. An unresolvable disk aborts the entity delete.
func (a *Attachment) BeforeDelete(ctx context.Context, entity Attachable) error {
	a.doomed = nil
	if a.meta == nil || a.desc.Options.PreserveFiles {
		return nil
	}
	if _, err := a.set.registry.disk(a.desc.Options.Disk); err != nil {
		return fmt.Errorf("attachment %q: %w", a.Name(), err)
	}
	a.doomed = paths(a.meta)
	return nil
}

// AfterDelete removes every known variant file. All variants are attempted;
// failures are returned together as a *StorageDeleteError.
func (a *Attachment) AfterDelete(ctx context.Context, entity Attachable) error {
	targets := a.doomed
	if targets == nil && !a.desc.Options.PreserveFiles {
		targets = paths(a.meta)
	}

	a.doomed = nil
	a.pending = nil
	a.deleting = false
	a.meta = nil
	a.state = StateDeleted

	if len(targets) == 0 {
		return nil
	}

	disk, err := a.set.registry.disk(a.desc.Options.Disk)
	if err != nil {
		failures := make(map[string]error, len(targets))
		for v := range targets {
			failures[v] = err
		}
		storageDeleteFailures.WithLabelValues(a.Name()).Add(float64(len(failures)))
		return &StorageDeleteError{Attachment: a.Name(), Failures: failures}
	}
	return a.deleteFiles(ctx, disk, targets)
}

func (a *Attachment) deleteFiles(ctx context.Context, disk storage.Adapter, targets map[string]string) error {
	failures := map[string]error{}
	for _, name := range a.orderedVariants(targets) {
		if err := disk.Delete(ctx, targets[name]); err != nil {
			failures[name] = err
			storageDeleteFailures.WithLabelValues(a.Name()).Inc()
		}
	}
	if len(failures) > 0 {
		return &StorageDeleteError{Attachment: a.Name(), Failures: failures}
	}
	return nil
}

// orderedVariants lists the keys of m in declaration order, followed by
// variants no longer declared.
func (a *Attachment) orderedVariants(m map[string]string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, name := range a.desc.VariantNames() {
		if _, ok := m[name]; ok {
			out = append(out, name)
			seen[name] = struct{}{}
		}
	}
	rest := make([]string, 0)
	for name := range m {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Variants yields variant names in declaration order, original first. With
// onlyExisting set only variants with a recorded path are yielded.
func (a *Attachment) Variants(onlyExisting bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range a.desc.VariantNames() {
			if onlyExisting && a.meta.Path(name) == "" {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

func (a *Attachment) resolve(variant string) (string, error) {
	if variant == "" {
		variant = a.desc.DefaultVariant()
	}
	if _, ok := a.desc.Plan(variant); !ok {
		return "", fmt.Errorf("%w: %s.%s", common.ErrUnknownVariant, a.Name(), variant)
	}
	return variant, nil
}

// VariantPath returns the stored path of variant, or "" when it has not
// been generated.
func (a *Attachment) VariantPath(variant string) (string, error) {
	name, err := a.resolve(variant)
	if err != nil {
		return "", err
	}
	return a.meta.Path(name), nil
}

// URL returns the public URL of variant. A variant without a stored file
// yields the interpolated DefaultURL (possibly "").
func (a *Attachment) URL(variant string) (string, error) {
	name, err := a.resolve(variant)
	if err != nil {
		return "", err
	}

	p := a.meta.Path(name)
	if p == "" {
		if a.desc.Options.DefaultURL == "" {
			return "", nil
		}
		return Interpolate(a.desc.Options.DefaultURL, PathParams{
			Class:      a.set.registry.EntityType(),
			Attachment: a.Name(),
			Variant:    name,
		}), nil
	}

	disk, err := a.set.registry.disk(a.desc.Options.Disk)
	if err != nil {
		return "", err
	}
	return disk.URL(p), nil
}

func paths(m *Metadata) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m.Variants))
	for name, v := range m.Variants {
		if v.Path != "" {
			out[name] = v.Path
		}
	}
	return out
}

// livePaths are the files the recorded metadata references. A new upload
// never writes to them, so a failed save leaves them untouched.
func livePaths(m *Metadata) map[string]struct{} {
	live := make(map[string]struct{})
	for _, p := range paths(m) {
		live[p] = struct{}{}
	}
	return live
}

// stagedPath tags p with the upload fingerprint: dir/name.png becomes
// dir/name-<fp>.png.
func stagedPath(p, fingerprint string) string {
	tag := fingerprint
	if len(tag) > 12 {
		tag = tag[:12]
	}
	if tag == "" {
		tag = "new"
	}
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "-" + tag + ext
}

// orphaned returns the sorted written paths that metadata does not reference.
func orphaned(written []string, live map[string]struct{}) []string {
	out := make([]string, 0, len(written))
	for _, p := range written {
		if _, ok := live[p]; !ok {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func sortedVariants(m *Metadata) []string {
	names := make([]string, 0, len(m.Variants))
	for name := range m.Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
