package exclusion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "exclusions.yaml")

	s := NewSet()
	s.Exclude(keyFor(t, tmp, "node_modules"))
	s.Exclude(keyFor(t, tmp, "vendor"))

	require.NoError(t, SaveProfile(profilePath, s))

	loaded, err := LoadProfile(profilePath)
	require.NoError(t, err)

	assert.Equal(t, s.List(), loaded.List())
}

func TestSaveProfileEmptySet(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "exclusions.yaml")

	require.NoError(t, SaveProfile(profilePath, NewSet()))

	loaded, err := LoadProfile(profilePath)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestLoadProfileCanonicalizesEntries(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "exclusions.yaml")

	// Hand-written profile with a redundant path spelling.
	sep := string(filepath.Separator)
	messy := filepath.Join(tmp, "dir") + sep + ".." + sep + "dir"
	content := "excluded:\n  - " + messy + "\n"
	require.NoError(t, os.WriteFile(profilePath, []byte(content), 0644))

	loaded, err := LoadProfile(profilePath)
	require.NoError(t, err)

	require.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.IsExcluded(keyFor(t, tmp, "dir")))
	assert.True(t, loaded.IsExcluded(keyFor(t, tmp, "dir", "inner.bin")))
}

func TestLoadProfileMissingFile(t *testing.T) {
	tmp := t.TempDir()

	_, err := LoadProfile(filepath.Join(tmp, "absent.yaml"))
	require.Error(t, err)
}

func TestLoadProfileMalformedYAML(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "exclusions.yaml")

	require.NoError(t, os.WriteFile(profilePath, []byte("excluded: [unclosed"), 0644))

	_, err := LoadProfile(profilePath)
	require.Error(t, err)
}

func TestLoadProfileRejectsEmptyEntry(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "exclusions.yaml")

	require.NoError(t, os.WriteFile(profilePath, []byte("excluded:\n  - \"\"\n"), 0644))

	_, err := LoadProfile(profilePath)
	require.Error(t, err)
}
