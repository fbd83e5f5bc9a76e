package attachment

import (
	"maps"
	"time"
)

// VariantInfo describes one stored variant file.
type VariantInfo struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Metadata is the persisted, derived state of one attachment. A variant
// missing from Variants has not been generated.
type Metadata struct {
	FileName    string                 `json:"file_name"`
	ContentType string                 `json:"content_type"`
	FileSize    int64                  `json:"file_size"`
	Fingerprint string                 `json:"fingerprint"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Variants    map[string]VariantInfo `json:"variants"`
}

func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Variants = maps.Clone(m.Variants)
	return &c
}

// Path returns the stored path of variant or "".
func (m *Metadata) Path(variant string) string {
	if m == nil {
		return ""
	}
	return m.Variants[variant].Path
}
