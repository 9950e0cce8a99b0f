package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/store"
)

func TestGetMissingKeyReturnsNil(t *testing.T) {
	s := openTemp(t)
	v, err := s.Get(context.Background(), store.KeyProjects)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.KeyTasks, []byte(`[{"id":"t1"}]`)))

	v, err := s.Get(ctx, store.KeyTasks)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"t1"}]`, string(v))
}

func TestPutOverwritesExistingValue(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.KeyActiveProject, []byte(`"p1"`)))
	require.NoError(t, s.Put(ctx, store.KeyActiveProject, []byte(`"p2"`)))

	v, err := s.Get(ctx, store.KeyActiveProject)
	require.NoError(t, err)
	assert.Equal(t, `"p2"`, string(v))
}

func TestDeleteRemovesKey(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.KeyUser, []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, store.KeyUser))

	v, err := s.Get(ctx, store.KeyUser)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestValuesPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planboard.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, store.KeyProjects, []byte(`["p"]`)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(ctx, store.KeyProjects)
	require.NoError(t, err)
	assert.Equal(t, `["p"]`, string(v))
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "planboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
