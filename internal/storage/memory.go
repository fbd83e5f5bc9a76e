package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// MemoryObject is a stored blob.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryDisk keeps objects in process memory.
type MemoryDisk struct {
	mu      sync.RWMutex
	objects map[string]MemoryObject
	baseURL string
}

func NewMemoryDisk(baseURL string) *MemoryDisk {
	return &MemoryDisk{objects: make(map[string]MemoryObject), baseURL: baseURL}
}

func (d *MemoryDisk) Write(ctx context.Context, p string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := CleanKey(p)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("memory write %s: %w", key, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	return key, nil
}

func (d *MemoryDisk) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := CleanKey(p)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, key)
	return nil
}

func (d *MemoryDisk) URL(p string) string {
	key, err := CleanKey(p)
	if err != nil {
		return ""
	}
	return joinURL(d.baseURL, key)
}

func (d *MemoryDisk) Exists(_ context.Context, p string) (bool, error) {
	key, err := CleanKey(p)
	if err != nil {
		return false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.objects[key]
	return ok, nil
}

func (d *MemoryDisk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	obj, ok := d.Object(p)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, common.ErrorNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Object returns the stored object at p.
func (d *MemoryDisk) Object(p string) (MemoryObject, bool) {
	key, err := CleanKey(p)
	if err != nil {
		return MemoryObject{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.objects[key]
	return obj, ok
}

// Keys lists stored paths in lexical order.
func (d *MemoryDisk) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, 0, len(d.objects))
	for k := range d.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
