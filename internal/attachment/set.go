package attachment

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// Set holds the attachments of one entity instance. Entities embed it as a
// field and expose it through Attachable.Attachments.
type Set struct {
	registry *Registry
	items    []*Attachment
	byName   map[string]*Attachment
	updated  bool
}

// Registry returns the registry the set was bound from.
func (s *Set) Registry() *Registry { return s.registry }

// Get returns the named attachment.
func (s *Set) Get(name string) (*Attachment, error) {
	a, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", common.ErrUnknownAttachment, s.registry.EntityType(), name)
	}
	return a, nil
}

// Set assigns value to the named attachment: nil is ignored, Null schedules
// deletion and anything else is turned into an upload. An invalid upload
// leaves the attachment untouched.
func (s *Set) Set(ctx context.Context, name string, value any) error {
	a, err := s.Get(name)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == Null {
			a.SetToBeDeleted()
			return nil
		}
	}

	f, err := s.registry.uploads.MakeFromAny(ctx, value)
	if err != nil {
		return fmt.Errorf("attachment %q: %w", name, err)
	}
	a.SetUploadedFile(f)
	return nil
}

// All returns the attachments in declaration order.
func (s *Set) All() []*Attachment {
	return append([]*Attachment(nil), s.items...)
}

// MarkUpdated flags the set for processing on the next save.
func (s *Set) MarkUpdated() { s.updated = true }

// Updated reports whether an attachment changed since the last save.
func (s *Set) Updated() bool { return s.updated }

func (s *Set) clearUpdated() { s.updated = false }

// PathsFor maps every generated variant of name to its stored path.
func (s *Set) PathsFor(name string) (map[string]string, error) {
	a, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for v := range a.Variants(true) {
		out[v] = a.meta.Path(v)
	}
	return out, nil
}

// URLsFor maps every declared variant of name to its URL.
func (s *Set) URLsFor(name string) (map[string]string, error) {
	a, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for v := range a.Variants(false) {
		u, err := a.URL(v)
		if err != nil {
			return nil, err
		}
		out[v] = u
	}
	return out, nil
}

// Load hydrates the attachments from persisted metadata and resets their
// pending state. Entries for undeclared attachments are ignored.
func (s *Set) Load(meta map[string]*Metadata) {
	for _, a := range s.items {
		a.meta = meta[a.Name()].Clone()
		a.pending = nil
		a.deleting = false
		a.doomed = nil
		a.state = StateClean
	}
	s.updated = false
}

// Snapshot returns the persisted form: metadata of every attachment that
// has any.
func (s *Set) Snapshot() map[string]*Metadata {
	out := make(map[string]*Metadata, len(s.items))
	for _, a := range s.items {
		if a.meta != nil {
			out[a.Name()] = a.meta.Clone()
		}
	}
	return out
}
