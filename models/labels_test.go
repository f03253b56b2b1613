package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshnessLabels(t *testing.T) {
	assert.Equal(t, 2, FreshnessLabels.Len())

	label, err := FreshnessLabels.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", label)

	label, err = FreshnessLabels.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "Rotten", label)

	_, err = FreshnessLabels.Lookup(2)
	assert.Error(t, err)
	_, err = FreshnessLabels.Lookup(-1)
	assert.Error(t, err)

	assert.Equal(t, 1, FreshnessLabels.Index("Rotten"))
	assert.Equal(t, -1, FreshnessLabels.Index("Stale"))
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("# food model v2\nFresh\n\nRotten\nUnripe\n"), 0o600))

	table, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, LabelTable{"Fresh", "Rotten", "Unripe"}, table)
}

func TestLoadLabelsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadLabels(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n\n"), 0o600))
	_, err = LoadLabels(empty)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.txt")
	require.NoError(t, os.WriteFile(dup, []byte("Fresh\nFresh\n"), 0o600))
	_, err = LoadLabels(dup)
	assert.Error(t, err)
}
