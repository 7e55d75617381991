package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSeedLoadsAllFormats(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "iris.yaml", `
name: Iris
description: Iris species classifier
parameters:
  - name: sepal_length
    data_type: float
  - name: sepal_width
    data_type: float
path_to_model: iris.json
`)
	writeSeed(t, dir, "nested/digits.toml", `
name = "Digits"
executable_url = "http://localhost:8001/models/digits"

[[parameters]]
name = "pixels"
data_type = "vector"
`)
	writeSeed(t, dir, "bare.json", `{"id": "keepme", "name": "Bare"}`)
	writeSeed(t, dir, "broken.json", `{"name": `)
	writeSeed(t, dir, "invalid.yaml", "name: Both\npath_to_model: a.json\nexecutable_url: http://x\n")
	writeSeed(t, dir, "README.md", "# not a seed")

	reg := New(nil)
	result, err := NewSeeder(reg, dir, nil).Seed()
	require.NoError(t, err)

	assert.Equal(t, 3, result.Loaded)
	assert.Equal(t, 2, result.Failed)
	assert.False(t, result.Skipped)

	byName := map[string]string{}
	for _, svc := range reg.List() {
		byName[svc.Name] = svc.ID
		assert.NotEqual(t, "keepme", svc.ID)
	}
	require.Contains(t, byName, "Iris")
	require.Contains(t, byName, "Digits")
	require.Contains(t, byName, "Bare")

	iris, err := reg.Get(byName["Iris"])
	require.NoError(t, err)
	assert.Equal(t, []string{"sepal_length", "sepal_width"}, iris.FeatureNames())

	digits, err := reg.Get(byName["Digits"])
	require.NoError(t, err)
	assert.Equal(t, "vector", digits.Parameters[0].DataType)
}

func TestSeedSkips(t *testing.T) {
	t.Run("no directory configured", func(t *testing.T) {
		result, err := NewSeeder(New(nil), "", nil).Seed()
		require.NoError(t, err)
		assert.True(t, result.Skipped)
	})

	t.Run("directory missing", func(t *testing.T) {
		result, err := NewSeeder(New(nil), filepath.Join(t.TempDir(), "absent"), nil).Seed()
		require.NoError(t, err)
		assert.True(t, result.Skipped)
	})

	t.Run("registry already populated", func(t *testing.T) {
		dir := t.TempDir()
		writeSeed(t, dir, "bare.json", `{"name": "Bare"}`)

		reg := New(nil)
		_, err := reg.Create(iris())
		require.NoError(t, err)

		result, err := NewSeeder(reg, dir, nil).Seed()
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, 1, reg.Len())
	})
}
