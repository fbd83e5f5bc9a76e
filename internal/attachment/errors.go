package attachment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/paperclip/internal/common"
)

// ProcessingError reports a failed save cycle. Files listed in Orphans were
// written before the failure and are not referenced by any metadata.
type ProcessingError struct {
	Attachment string
	Variant    string
	Orphans    []string
	Err        error
}

func (e *ProcessingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: attachment %q", common.ErrProcessing, e.Attachment)
	if e.Variant != "" {
		fmt.Fprintf(&b, " variant %q", e.Variant)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Orphans) > 0 {
		fmt.Fprintf(&b, " (%d orphaned files)", len(e.Orphans))
	}
	return b.String()
}

func (e *ProcessingError) Unwrap() []error {
	if e.Err == nil {
		return []error{common.ErrProcessing}
	}
	return []error{common.ErrProcessing, e.Err}
}

// StorageDeleteError collects per-variant delete failures of one
// attachment.
type StorageDeleteError struct {
	Attachment string
	Failures   map[string]error
}

func (e *StorageDeleteError) Error() string {
	variants := make([]string, 0, len(e.Failures))
	for v := range e.Failures {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		parts = append(parts, fmt.Sprintf("%s: %v", v, e.Failures[v]))
	}
	return fmt.Sprintf("%s: attachment %q: %s", common.ErrStorageDelete, e.Attachment, strings.Join(parts, "; "))
}

func (e *StorageDeleteError) Unwrap() []error {
	errs := []error{common.ErrStorageDelete}
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
