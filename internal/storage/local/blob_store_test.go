package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPutObjectWritesFile verifies content lands on disk and the URI points at it.
func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "cards/batch-1.csv", "text/csv", strings.NewReader("code,expires\n"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "cards/batch-1.csv"), uri)

	content, err := os.ReadFile(filepath.Join(dir, "cards/batch-1.csv"))
	require.NoError(t, err)
	require.Equal(t, "code,expires\n", string(content))
}

// TestPutObjectRejectsTraversal blocks paths that escape the base directory.
func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.csv", "text/csv", strings.NewReader("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes the base directory")
}

// TestNewCreatesMissingBaseDir verifies the base directory is created on demand.
func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

// TestNewRejectsFileAsBaseDir refuses a base path that is a regular file.
func TestNewRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(file)
	require.Error(t, err)
}
