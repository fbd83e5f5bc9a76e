// Package upload normalizes heterogeneous inputs (raw bytes, readers, local
// paths, remote URLs) into a single in-memory File abstraction.
package upload

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/paperclip/internal/cryptox"
	"github.com/gabriel-vasile/mimetype"
)

// File is an uploaded (or derived) file held in memory.
type File struct {
	name        string
	contentType string
	data        []byte
	fingerprint string
}

// NewFile wraps data. An empty or generic octet-stream contentType is
// sniffed from the content; a name without extension gets the sniffed one.
func NewFile(name string, data []byte, contentType string) *File {
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	if contentType == "" || filepath.Ext(name) == "" {
		m := mimetype.Detect(data)
		if contentType == "" {
			contentType = m.String()
		}
		if filepath.Ext(name) == "" {
			name += m.Extension()
		}
	}

	if i := strings.IndexByte(contentType, ';'); i >= 0 && strings.HasPrefix(contentType[:i], "image/") {
		contentType = contentType[:i]
	}

	return &File{name: name, contentType: contentType, data: data, fingerprint: cryptox.Fingerprint(data)}
}

func (f *File) Name() string { return f.name }

func (f *File) ContentType() string { return f.contentType }

func (f *File) Size() int64 { return int64(len(f.data)) }

// Extension returns the lowercase extension including the dot.
func (f *File) Extension() string { return strings.ToLower(filepath.Ext(f.name)) }

// Open returns a fresh reader positioned at the start of the content.
func (f *File) Open() io.Reader { return bytes.NewReader(f.data) }

// Bytes exposes the content. Callers must not modify it.
func (f *File) Bytes() []byte { return f.data }

// IsImage reports whether the content type is image/*.
func (f *File) IsImage() bool { return strings.HasPrefix(f.contentType, "image/") }

// Fingerprint returns the BLAKE2b-256 hex digest of the content.
func (f *File) Fingerprint() string { return f.fingerprint }

// WithName returns a copy of f carrying another file name.
func (f *File) WithName(name string) *File {
	return &File{name: name, contentType: f.contentType, data: f.data, fingerprint: f.fingerprint}
}
