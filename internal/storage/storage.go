// Package storage defines the adapter contract attachments write variant
// files through, a registry of named disks, and the local, S3 and
// in-memory implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// Adapter persists bytes under slash-separated relative paths.
// Implementations must tolerate concurrent writes to distinct paths.
type Adapter interface {
	// Write stores r at p and returns the path actually used.
	Write(ctx context.Context, p string, r io.Reader, contentType string) (string, error)
	// Delete removes p. Deleting a missing path is not an error.
	Delete(ctx context.Context, p string) error
	URL(p string) string
	Exists(ctx context.Context, p string) (bool, error)
	// Open returns common.ErrorNotFound for a missing path.
	Open(ctx context.Context, p string) (io.ReadCloser, error)
}

// Disks maps disk names to adapters.
type Disks struct {
	mu          sync.RWMutex
	adapters    map[string]Adapter
	defaultName string
}

// NewDisks creates a registry whose Get("") resolves to defaultName.
func NewDisks(defaultName string) *Disks {
	return &Disks{
		adapters:    make(map[string]Adapter),
		defaultName: defaultName,
	}
}

// Register adds or replaces the adapter known as name.
func (d *Disks) Register(name string, a Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[name] = a
}

// Get resolves name; an empty name means the default disk.
func (d *Disks) Get(name string) (Adapter, error) {
	if name == "" {
		name = d.defaultName
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownDisk, name)
	}
	return a, nil
}

func (d *Disks) Default() string { return d.defaultName }

func (d *Disks) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.adapters))
	for n := range d.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CleanKey normalizes p into a relative slash path that cannot escape the
// disk root.
func CleanKey(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty", common.ErrInvalidPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes root", common.ErrInvalidPath, p)
		}
	}
	k := strings.TrimPrefix(path.Clean("/"+p), "/")
	if k == "" {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidPath, p)
	}
	return k, nil
}

// joinURL appends an escaped key to base.
func joinURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
