package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/apiflow/pkg/env"
)

func newTestStore(t *testing.T) *EnvironmentStore {
	t.Helper()
	store, err := NewEnvironmentStoreWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &env.Environment{
		ID:   "dev",
		Name: "Development",
		Variables: []env.Variable{
			{Key: "host", Value: "localhost", Enabled: true},
			{Key: "token", Value: "secret", Enabled: false},
		},
	}
	require.NoError(t, store.Save(ctx, e))

	loaded, err := store.Load(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, e, loaded)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{ID: "dev", Name: "First"}))
	require.NoError(t, store.Save(ctx, &env.Environment{
		ID:        "dev",
		Name:      "Second",
		Variables: []env.Variable{{Key: "a", Value: "1", Enabled: true}},
	}))

	loaded, err := store.Load(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "Second", loaded.Name)
	require.Len(t, loaded.Variables, 1)
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, nil))
	assert.Error(t, store.Save(ctx, &env.Environment{Name: "no id"}))
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListOrdersByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{ID: "s", Name: "staging"}))
	require.NoError(t, store.Save(ctx, &env.Environment{ID: "d", Name: "dev"}))
	require.NoError(t, store.Save(ctx, &env.Environment{ID: "p", Name: "prod"}))

	environments, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, environments, 3)
	assert.Equal(t, "dev", environments[0].Name)
	assert.Equal(t, "prod", environments[1].Name)
	assert.Equal(t, "staging", environments[2].Name)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{ID: "dev", Name: "dev"}))
	require.NoError(t, store.Delete(ctx, "dev"))

	_, err := store.Load(ctx, "dev")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing id is not an error.
	assert.NoError(t, store.Delete(ctx, "ghost"))
}

func TestStoreApplyDiff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{
		ID:   "dev",
		Name: "dev",
		Variables: []env.Variable{
			{Key: "host", Value: "localhost", Enabled: true},
			{Key: "stale", Value: "old", Enabled: true},
		},
	}))

	diff := env.NewDiff()
	diff.RecordSet("host", "example.com")
	diff.RecordSet("token", "abc")
	diff.RecordUnset("stale")

	updated, err := store.ApplyDiff(ctx, "dev", diff)
	require.NoError(t, err)
	assert.Equal(t, env.Snapshot{"host": "example.com", "token": "abc"}, env.NewSnapshot(updated))

	// The merge is durable, not just reflected in the return value.
	loaded, err := store.Load(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, env.NewSnapshot(updated), env.NewSnapshot(loaded))
}

func TestStoreApplyDiffEmptyDiffLoads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{ID: "dev", Name: "dev"}))

	loaded, err := store.ApplyDiff(ctx, "dev", env.NewDiff())
	require.NoError(t, err)
	assert.Equal(t, "dev", loaded.ID)

	loaded, err = store.ApplyDiff(ctx, "dev", nil)
	require.NoError(t, err)
	assert.Equal(t, "dev", loaded.ID)
}

func TestStoreApplyDiffMissingEnvironment(t *testing.T) {
	store := newTestStore(t)

	diff := env.NewDiff()
	diff.RecordSet("a", "1")
	_, err := store.ApplyDiff(context.Background(), "ghost", diff)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreApplyDiffConcurrentMergesAllLand(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &env.Environment{ID: "dev", Name: "dev"}))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			diff := env.NewDiff()
			diff.RecordSet(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
			_, err := store.ApplyDiff(ctx, "dev", diff)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := store.Load(ctx, "dev")
	require.NoError(t, err)
	snap := env.NewSnapshot(loaded)
	require.Len(t, snap, workers)
	for i := 0; i < workers; i++ {
		assert.Equal(t, fmt.Sprintf("value-%d", i), snap[fmt.Sprintf("key-%d", i)])
	}
}
