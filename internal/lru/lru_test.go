package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(key, val string) *Entry {
	return &Entry{Key: key, Value: []byte(val), Added: time.Now()}
}

func TestPutGet(t *testing.T) {
	l := New(100)

	evicted, ok := l.Put(entry("a", "hello"))
	require.True(t, ok)
	require.Empty(t, evicted)

	got, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got.Value)
	assert.Equal(t, int64(5), l.Bytes())
	assert.Equal(t, 1, l.Len())

	_, ok = l.Get("missing")
	assert.False(t, ok)
}

func TestEvictionOrder(t *testing.T) {
	l := New(30)

	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok := l.Put(entry(k, "0123456789"))
		require.True(t, ok)
	}

	// Touch k1 so k2 becomes the oldest.
	_, ok := l.Get("k1")
	require.True(t, ok)

	evicted, ok := l.Put(entry("k4", "0123456789"))
	require.True(t, ok)
	require.Len(t, evicted, 1)
	assert.Equal(t, "k2", evicted[0].Key)

	for _, k := range []string{"k1", "k3", "k4"} {
		_, ok := l.Peek(k)
		assert.True(t, ok, "expected %s resident", k)
	}
	assert.Equal(t, int64(30), l.Bytes())
}

func TestOversizeRejected(t *testing.T) {
	l := New(10)

	evicted, ok := l.Put(entry("big", "01234567890"))
	assert.False(t, ok)
	assert.Empty(t, evicted)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, int64(0), l.Bytes())
}

func TestReplaceAdjustsBytes(t *testing.T) {
	l := New(100)

	_, ok := l.Put(entry("a", "12345"))
	require.True(t, ok)
	_, ok = l.Put(entry("a", "1234567890"))
	require.True(t, ok)

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, int64(10), l.Bytes())
}

func TestReplaceCanEvictOthers(t *testing.T) {
	l := New(20)

	_, ok := l.Put(entry("a", "0123456789"))
	require.True(t, ok)
	_, ok = l.Put(entry("b", "0123456789"))
	require.True(t, ok)

	// Growing a to 20 bytes pushes b out.
	evicted, ok := l.Put(entry("a", "01234567890123456789"))
	require.True(t, ok)
	require.Len(t, evicted, 1)
	assert.Equal(t, "b", evicted[0].Key)
	assert.Equal(t, int64(20), l.Bytes())
}

func TestRemove(t *testing.T) {
	l := New(100)

	_, ok := l.Put(entry("a", "12345"))
	require.True(t, ok)

	removed, ok := l.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", removed.Key)
	assert.Equal(t, int64(0), l.Bytes())

	_, ok = l.Remove("a")
	assert.False(t, ok)
}

func TestOldestAndClear(t *testing.T) {
	l := New(100)
	require.Nil(t, l.Oldest())

	_, _ = l.Put(entry("first", "x"))
	_, _ = l.Put(entry("second", "y"))
	assert.Equal(t, "first", l.Oldest().Key)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, int64(0), l.Bytes())
	assert.Nil(t, l.Oldest())
}

func TestZeroLengthValue(t *testing.T) {
	l := New(10)

	_, ok := l.Put(&Entry{Key: "empty", Value: nil})
	require.True(t, ok)

	got, ok := l.Get("empty")
	require.True(t, ok)
	assert.Empty(t, got.Value)
	assert.Equal(t, int64(0), l.Bytes())
	assert.Equal(t, 1, l.Len())
}
