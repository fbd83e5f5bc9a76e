// Package filex contains filesystem helpers shared by the local disk
// adapter and the CLI.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) when it does not exist yet.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// AtomicWrite streams r into fullPath. Data is written into a sibling temp
// file, fsynced and then renamed into place, so readers never observe a
// partially written file. The temp file is removed on any failure.
func AtomicWrite(fullPath string, r io.Reader) (int64, error) {
	if err := EnsureDir(filepath.Dir(fullPath)); err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename into place: %w", err)
	}

	return size, nil
}

// RemoveIfExists deletes path, treating a missing file as success. Empty
// parent directories up to (but excluding) stop are pruned afterwards.
func RemoveIfExists(path, stop string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	stop = filepath.Clean(stop)
	for dir := filepath.Dir(path); dir != stop && len(dir) > len(stop); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			// not empty or already gone
			break
		}
	}
	return nil
}
