package filex

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAtomicWrite_WritesContentAndLeavesNoTemp(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "records", "1", "photo.png")

	n, err := AtomicWrite(target, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestAtomicWrite_ReaderErrorRemovesTemp(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "x.bin")

	_, err := AtomicWrite(target, brokenReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveIfExists(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "records", "1", "avatar", "thumb.png")
	_, err := AtomicWrite(target, bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	require.NoError(t, RemoveIfExists(target, root))

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "records"))
	assert.True(t, os.IsNotExist(err), "empty parents are pruned")

	_, err = os.Stat(root)
	assert.NoError(t, err, "stop directory is kept")

	assert.NoError(t, RemoveIfExists(target, root), "missing file is not an error")
}
