package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

func observedRegistry() (*Registry, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return New(zap.New(core)), logs
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "db", "services.json"))

	reg := New(nil)
	local := iris()
	local.ThumbnailURL = "https://img.example/iris.png"
	remoteSvc := types.Service{
		Name:          "Digits",
		Parameters:    []types.ServiceParameter{{Name: "pixels", Description: "8x8 image", DataType: "vector"}},
		ExecutableURL: "http://models.internal:8001/models/digits",
	}
	for _, svc := range []types.Service{local, remoteSvc, {Name: "bare"}} {
		_, err := reg.Create(svc)
		require.NoError(t, err)
	}

	require.True(t, reg.Persist(store))

	restored := New(nil)
	assert.Equal(t, 3, restored.Restore(store))
	assert.Equal(t, reg.Snapshot(), restored.Snapshot())
}

func TestStoreSaveUsesDocumentFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	store := NewFileStore(path)

	svc := iris()
	svc.ID = "aB3xY9"
	require.NoError(t, store.Save(map[string]types.Service{"aB3xY9": svc}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, field := range []string{`"aB3xY9"`, `"path_to_model"`, `"thumbnail_url"`, `"executable_url"`, `"data_type"`} {
		assert.Contains(t, string(data), field)
	}

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	services, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, services)

	reg, logs := observedRegistry()
	assert.Equal(t, 0, reg.Restore(store))
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestStoreLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: `{"abc123": {"name": `},
		{name: "null document", content: `null`},
		{name: "array document", content: `[]`},
		{name: "wrong field type", content: `{"abc123": {"name": 42}}`},
		{name: "invalid entry among valid", content: `{
			"abc123": {"name": "ok", "path_to_model": "a.json"},
			"def456": {"name": "dup", "parameters": [{"name": "a"}, {"name": "a"}]}
		}`},
		{name: "empty key", content: `{"": {"name": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "services.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			store := NewFileStore(path)

			_, err := store.Load()
			assert.ErrorIs(t, err, ErrStoreCorrupted)

			reg, logs := observedRegistry()
			_, err = reg.Create(iris())
			require.NoError(t, err)

			assert.Equal(t, 0, reg.Restore(store))
			assert.Equal(t, 0, reg.Len())
			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
		})
	}
}

func TestStoreLoadKeepsDualBackendEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"abc123": {"name": "both", "path_to_model": "a.json", "executable_url": "http://models.internal/a"}
	}`), 0o600))

	services, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Contains(t, services, "abc123")
	assert.Equal(t, types.RemoteEndpoint{URL: "http://models.internal/a"}, services["abc123"].Backend())
}

func TestStoreLoadTakesIDFromKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"abc123": {"id": "zzz999", "name": "x"}}`), 0o600))

	services, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Contains(t, services, "abc123")
	assert.Equal(t, "abc123", services["abc123"].ID)
}

func TestPersistFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// the parent "directory" is a regular file, so the save cannot succeed
	store := NewFileStore(filepath.Join(blocker, "services.json"))

	reg, logs := observedRegistry()
	_, err := reg.Create(iris())
	require.NoError(t, err)

	assert.False(t, reg.Persist(store))
	assert.Equal(t, 1, logs.FilterMessage("Failed to save service store").Len())
	assert.Equal(t, 1, reg.Len())
}
