package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_DirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	single := writeFile(t, "single.yaml", "")

	files, err := Discover(dir, single)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		single,
	}, files)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"))

	var nf *ScenarioNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Error(), "missing")
}

func TestDiscover_EmptyDirectory(t *testing.T) {
	_, err := Discover(t.TempDir())

	var nf *ScenarioNotFoundError
	assert.True(t, errors.As(err, &nf))
}
