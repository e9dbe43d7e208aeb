package blobstore

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "x/1", data))
	data[0] = 'z'

	blob, err := store.Open(ctx, "x/1")
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf), "Put must copy its input")

	n, err = blob.ReadAt(ctx, buf, 2)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)

	w, err := store.Create(ctx, "x/2")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)

	_, err = store.Open(ctx, "x/2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1", "x/2"}, names)
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Delete(ctx, "x/1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a' + i))
			assert.NoError(t, store.Put(ctx, name, []byte(name)))
			_, err := store.List(ctx, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, store.Len())
}

func TestMemoryStore_Abort(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "partial")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)

	a, ok := w.(Aborter)
	require.True(t, ok)
	require.NoError(t, a.Abort())

	_, err = w.Write([]byte("more"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	_, err = store.Open(ctx, "partial")
	assert.ErrorIs(t, err, ErrNotFound)
}
