package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Set(ctx, "array/c/0/0", []byte("chunk")))

	v, found, err := s.Get(ctx, "array/c/0/0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("chunk"), v)

	_, found, err = s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEraseIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Erase(ctx, "k"))
	require.NoError(t, s.Erase(ctx, "k"))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, k := range []string{"a/1", "a/2", "b/1"} {
		require.NoError(t, s.Set(ctx, k, []byte("v")))
	}

	keys, err := s.ListPrefix(ctx, "a/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1", "a/2"}, keys)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListDirCollapsesChildren(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, k := range []string{"root/a", "root/sub/x", "root/sub/y", "other"} {
		require.NoError(t, s.Set(ctx, k, []byte("v")))
	}

	children, err := s.ListDir(ctx, "root")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"root/a", "root/sub/"}, children)
}

func TestErasePrefix(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, k := range []string{"tree/a", "tree/b", "keep/c"} {
		require.NoError(t, s.Set(ctx, k, []byte("v")))
	}

	require.NoError(t, s.ErasePrefix(ctx, "tree/"))

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keep/c"}, keys)
}

func TestZeroLengthValue(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Set(ctx, "empty", []byte{}))

	v, found, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, v)
}
