package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionLookup(t *testing.T) {
	m := NewRegionMap(map[string]string{
		"de":  "Europe",
		" US": "North America",
	}, "")

	assert.Equal(t, "Europe", m.Region("DE"))
	assert.Equal(t, "Europe", m.Region("de"))
	assert.Equal(t, "North America", m.Region("US"))
	assert.Equal(t, DefaultRegionBucket, m.Region("XX"))
	assert.Equal(t, DefaultRegionBucket, m.Region(""))
}

func TestLoadRegionMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	content := `{"default":"Rest of World","countries":{"FR":"Europe"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadRegionMap(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe", m.Region("FR"))
	assert.Equal(t, "Rest of World", m.Region("JP"))
}

func TestLoadRegionMapErrors(t *testing.T) {
	_, err := LoadRegionMap(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default":"Other","countries":{}}`), 0o644))
	_, err = LoadRegionMap(path)
	assert.Error(t, err)
}
