// Package netx holds the HTTP download helper used for remote uploads.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
)

// Download is a fetched remote file.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// Fetch GETs raw with client and reads at most limit bytes of the body; a
// body longer than limit is truncated to limit+1 bytes so callers can
// detect the overflow. Non-2xx responses are errors.
func Fetch(ctx context.Context, client *http.Client, raw string, limit int64) (*Download, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "download"
	}

	return &Download{Name: name, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}
