package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/netx"
)

const (
	defaultMaxSize = 32 << 20
	defaultTimeout = 30 * time.Second
)

// Source describes a stream with caller-provided metadata.
type Source struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Factory turns arbitrary values into Files.
type Factory struct {
	client  *http.Client
	maxSize int64
}

type Option func(*Factory)

// WithHTTPClient replaces the client used for remote URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) { f.client = c }
}

// WithMaxSize bounds the accepted content size in bytes.
func WithMaxSize(n int64) Option {
	return func(f *Factory) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// WithTimeout sets the download timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.client = &http.Client{Timeout: d}
		}
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		client:  &http.Client{Timeout: defaultTimeout},
		maxSize: defaultMaxSize,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// MakeFromAny accepts *File, []byte, Source, io.Reader, a local file path
// or an http(s) URL. Every failure wraps common.ErrInvalidUpload.
func (f *Factory) MakeFromAny(ctx context.Context, value any) (*File, error) {
	switch v := value.(type) {
	case *File:
		if v == nil {
			return nil, fmt.Errorf("%w: nil file", common.ErrInvalidUpload)
		}
		return f.check(v)
	case []byte:
		return f.fromReader("upload", "", bytes.NewReader(v))
	case Source:
		if v.Reader == nil {
			return nil, fmt.Errorf("%w: source %q has no reader", common.ErrInvalidUpload, v.Name)
		}
		name := v.Name
		if name == "" {
			name = "upload"
		}
		return f.fromReader(name, v.ContentType, v.Reader)
	case io.Reader:
		return f.fromReader("upload", "", v)
	case string:
		if isRemote(v) {
			return f.fromURL(ctx, v)
		}
		return f.fromPath(v)
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %T", common.ErrInvalidUpload, value)
	}
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (f *Factory) fromReader(name, contentType string, r io.Reader) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrInvalidUpload, name, err)
	}
	return f.check(NewFile(name, data, contentType))
}

func (f *Factory) fromPath(p string) (*File, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", common.ErrInvalidUpload)
	}

	fh, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrInvalidUpload, p, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", common.ErrInvalidUpload, p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrInvalidUpload, p)
	}

	return f.fromReader(filepath.Base(p), "", fh)
}

func (f *Factory) fromURL(ctx context.Context, raw string) (*File, error) {
	d, err := netx.Fetch(ctx, f.client, raw, f.maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrInvalidUpload, raw, err)
	}
	return f.check(NewFile(d.Name, d.Data, d.ContentType))
}

func (f *Factory) check(file *File) (*File, error) {
	switch {
	case file.Size() == 0:
		return nil, fmt.Errorf("%w: %s is empty", common.ErrInvalidUpload, file.Name())
	case file.Size() > f.maxSize:
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrInvalidUpload, file.Name(), f.maxSize)
	}
	return file, nil
}
