package photos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFirstWriteHasNoArchivedPath(t *testing.T) {
	root := t.TempDir()
	rawDir := filepath.Join(root, "raw")
	derivedDir := filepath.Join(root, "derived")
	trashDir := filepath.Join(root, "trash", "bucket1")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.MkdirAll(derivedDir, 0o755))

	rawPath := filepath.Join(rawDir, "overview.jpg")
	require.NoError(t, os.WriteFile(rawPath, []byte("first"), 0o644))

	result, err := Publish(rawPath, derivedDir, "overview", trashDir)
	require.NoError(t, err)
	assert.Empty(t, result.ArchivedPath)
	assert.FileExists(t, result.DerivedPath)

	data, err := os.ReadFile(result.DerivedPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestPublishSecondWriteArchivesPriorDerivedFile(t *testing.T) {
	root := t.TempDir()
	rawDir := filepath.Join(root, "raw")
	derivedDir := filepath.Join(root, "derived")
	trashDir := filepath.Join(root, "trash", "bucket1")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.MkdirAll(derivedDir, 0o755))

	first := filepath.Join(rawDir, "overview.jpg")
	require.NoError(t, os.WriteFile(first, []byte("v1"), 0o644))
	_, err := Publish(first, derivedDir, "overview", trashDir)
	require.NoError(t, err)

	second := filepath.Join(rawDir, "overview_v2.jpg")
	require.NoError(t, os.WriteFile(second, []byte("v2"), 0o644))
	result, err := Publish(second, derivedDir, "overview", trashDir)
	require.NoError(t, err)

	require.NotEmpty(t, result.ArchivedPath)
	assert.FileExists(t, result.ArchivedPath)

	data, err := os.ReadFile(result.DerivedPath)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	archived, err := os.ReadFile(result.ArchivedPath)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(archived))
}

func TestArchiveDestinationResolvesCollisions(t *testing.T) {
	trashDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(trashDir, "overview.jpg"), []byte("x"), 0o644))

	dest, err := archiveDestination(trashDir, "overview.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(trashDir, "overview_1.jpg"), dest)
}
