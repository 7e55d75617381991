package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/id"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// zeroReader is entropy that always draws the same id
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// scriptedIDs replays a fixed list of candidates
type scriptedIDs struct {
	ids   []string
	draws int
}

func (s *scriptedIDs) Draw() (string, error) {
	if s.draws >= len(s.ids) {
		return "", errors.New("script exhausted")
	}
	next := s.ids[s.draws]
	s.draws++
	return next, nil
}

func iris() types.Service {
	return types.Service{
		Name:        "Iris",
		Description: "x",
		Parameters: []types.ServiceParameter{
			{Name: "sepal_length", DataType: "float"},
			{Name: "sepal_width", DataType: "float"},
		},
		PathToModel: "iris.json",
	}
}

func strPtr(s string) *string { return &s }

func TestCreateAllocatesDistinctIDs(t *testing.T) {
	reg := New(nil)

	const n = 500
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		serviceID, err := reg.Create(iris())
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{6}$`, serviceID)

		_, dup := seen[serviceID]
		require.False(t, dup, "duplicate id %s", serviceID)
		seen[serviceID] = struct{}{}
	}
	assert.Equal(t, n, reg.Len())
}

func TestCreateStoresCopyWithID(t *testing.T) {
	reg := New(nil)
	svc := iris()
	svc.ID = "ignored"

	serviceID, err := reg.Create(svc)
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", serviceID)

	svc.Parameters[0].Name = "mutated"

	got, err := reg.Get(serviceID)
	require.NoError(t, err)
	assert.Equal(t, serviceID, got.ID)
	assert.Equal(t, "sepal_length", got.Parameters[0].Name)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	ids := &scriptedIDs{ids: []string{"aaaaaa", "aaaaaa", "aaaaaa", "bbbbbb"}}
	reg := NewWithIDSource(nil, ids)

	first, err := reg.Create(iris())
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa", first)

	second, err := reg.Create(iris())
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", second)
	assert.Equal(t, 4, ids.draws)
}

func TestCreateGenerationExhausted(t *testing.T) {
	reg := NewWithIDSource(nil, id.NewAlnumGeneratorWithEntropy(zeroReader{}))

	first, err := reg.Create(iris())
	require.NoError(t, err)
	require.Equal(t, "aaaaaa", first)

	before := reg.Snapshot()

	_, err = reg.Create(iris())
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Contains(t, err.Error(), fmt.Sprint(MaxIDAttempts))
	assert.Equal(t, before, reg.Snapshot())
}

func TestGenerateIDDrawLimit(t *testing.T) {
	draws := 0
	src := &countingSource{draw: func() string { draws++; return "aaaaaa" }}

	_, err := GenerateID(src, func(string) bool { return true })
	assert.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, MaxIDAttempts, draws)
}

type countingSource struct{ draw func() string }

func (c *countingSource) Draw() (string, error) { return c.draw(), nil }

// flakyIDs fails its first failures draws, then yields next
type flakyIDs struct {
	failures int
	next     string
	calls    int
}

func (f *flakyIDs) Draw() (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("entropy unavailable")
	}
	return f.next, nil
}

func TestCreateEntropyFailure(t *testing.T) {
	src := &flakyIDs{failures: MaxIDAttempts + 1}
	reg := NewWithIDSource(nil, src)

	_, err := reg.Create(iris())
	assert.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Contains(t, err.Error(), "entropy unavailable")
	assert.Equal(t, MaxIDAttempts, src.calls)
	assert.Equal(t, 0, reg.Len())
}

func TestCreateRecoversFromTransientEntropyFailure(t *testing.T) {
	src := &flakyIDs{failures: 3, next: "bbbbbb"}
	reg := NewWithIDSource(nil, src)

	serviceID, err := reg.Create(iris())
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", serviceID)
	assert.Equal(t, 4, src.calls)
}

func TestCreateRejectsInvalidService(t *testing.T) {
	ids := &scriptedIDs{ids: []string{"aaaaaa"}}
	reg := NewWithIDSource(nil, ids)

	svc := iris()
	svc.ExecutableURL = "http://models.internal/iris"

	_, err := reg.Create(svc)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, ids.draws)
}

func TestUpdateMergesFields(t *testing.T) {
	reg := New(nil)
	serviceID, err := reg.Create(iris())
	require.NoError(t, err)

	updated, err := reg.Update(serviceID, types.ServicePatch{Name: strPtr("new")})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "x", updated.Description)
	assert.Equal(t, serviceID, updated.ID)
	assert.Len(t, updated.Parameters, 2)

	stored, err := reg.Get(serviceID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpdateSwitchesBackend(t *testing.T) {
	reg := New(nil)
	serviceID, err := reg.Create(iris())
	require.NoError(t, err)

	updated, err := reg.Update(serviceID, types.ServicePatch{
		ExecutableURL: strPtr("http://models.internal/iris"),
		PathToModel:   strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, types.RemoteEndpoint{URL: "http://models.internal/iris"}, updated.Backend())
}

func TestUpdateNotFound(t *testing.T) {
	reg := New(nil)

	_, err := reg.Update("nope00", types.ServicePatch{Name: strPtr("new")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateInvalidLeavesStoredValue(t *testing.T) {
	reg := New(nil)
	serviceID, err := reg.Create(iris())
	require.NoError(t, err)
	before, err := reg.Get(serviceID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch types.ServicePatch
	}{
		{name: "both backends", patch: types.ServicePatch{ExecutableURL: strPtr("http://models.internal")}},
		{name: "unnamed parameter", patch: types.ServicePatch{Parameters: &[]types.ServiceParameter{{Description: "no name"}}}},
		{name: "duplicate parameters", patch: types.ServicePatch{Parameters: &[]types.ServiceParameter{{Name: "a"}, {Name: "a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Update(serviceID, tt.patch)
			assert.ErrorIs(t, err, ErrValidation)

			after, err := reg.Get(serviceID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestRemove(t *testing.T) {
	reg := New(nil)
	serviceID, err := reg.Create(iris())
	require.NoError(t, err)

	removed, err := reg.Remove(serviceID)
	require.NoError(t, err)
	assert.Equal(t, serviceID, removed.ID)
	assert.Equal(t, "Iris", removed.Name)

	_, err = reg.Get(serviceID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, reg.List())

	_, err = reg.Remove(serviceID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSortedByID(t *testing.T) {
	reg := NewWithIDSource(nil, &scriptedIDs{ids: []string{"cccccc", "aaaaaa", "bbbbbb"}})
	for i := 0; i < 3; i++ {
		_, err := reg.Create(iris())
		require.NoError(t, err)
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "aaaaaa", list[0].ID)
	assert.Equal(t, "bbbbbb", list[1].ID)
	assert.Equal(t, "cccccc", list[2].ID)
}

func TestStats(t *testing.T) {
	reg := New(nil)
	remoteSvc := iris()
	remoteSvc.PathToModel = ""
	remoteSvc.ExecutableURL = "http://models.internal/iris"

	for _, svc := range []types.Service{iris(), remoteSvc, {Name: "empty"}} {
		_, err := reg.Create(svc)
		require.NoError(t, err)
	}

	stats := reg.Stats()
	assert.Equal(t, 3, stats["total_services"])
	assert.Equal(t, map[string]int{"remote": 1, "local": 1, "unconfigured": 1}, stats["backends"])
}

func TestRegistryMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	reg := New(nil).WithMetrics(metrics)
	serviceID, err := reg.Create(iris())
	require.NoError(t, err)
	_, err = reg.Create(iris())
	require.NoError(t, err)
	_, err = reg.Remove(serviceID)
	require.NoError(t, err)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "servicehub_registry_services" {
			found = true
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestConcurrentAccess(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serviceID, err := reg.Create(iris())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- serviceID
			_, _ = reg.Update(serviceID, types.ServicePatch{Name: strPtr("renamed")})
			_ = reg.List()
		}()
	}
	wg.Wait()
	close(ids)

	count := 0
	for serviceID := range ids {
		svc, err := reg.Get(serviceID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", svc.Name)
		count++
	}
	assert.Equal(t, 100, count)
	assert.Equal(t, 100, reg.Len())
}
