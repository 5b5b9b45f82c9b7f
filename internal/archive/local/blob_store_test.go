package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "archive")
	_, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := New(Config{BaseDir: path})
	assert.Error(t, err)
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "gupy/2026-03-07/1.json", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(base, "gupy/2026-03-07/1.json"), uri)

	data, err := os.ReadFile(filepath.Join(base, "gupy", "2026-03-07", "1.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.json", "application/json", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "application/json", strings.NewReader("x"))
	assert.Error(t, err)
}
