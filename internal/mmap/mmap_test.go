package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestOpen(t *testing.T) {
	content := []byte("header|payload")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	require.NoError(t, m.Advise(AccessSequential))

	buf := make([]byte, 7)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(buf))

	n, err = m.ReadAt(make([]byte, 4), 100)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestOpen_Empty(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	assert.Zero(t, m.Size())
	assert.NoError(t, m.Close())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegion(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("header|payload")))
	require.NoError(t, err)

	r, err := m.Region(7, 7)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(r.Bytes()))
	assert.Equal(t, 7, r.Size())
	assert.NoError(t, r.Advise(AccessRandom))

	_, err = m.Region(10, 10)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, m.Close())
	assert.Nil(t, r.Bytes())
	assert.Nil(t, m.Bytes())
	assert.NoError(t, m.Close(), "close is idempotent")

	_, err = m.Region(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
}
