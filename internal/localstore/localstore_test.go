package localstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veiled-verse/internal/localstore"
)

func TestFile_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queues", "u1.json")

	f, err := localstore.OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Set("offline_actions", []byte(`[{"id":"1"}]`)))
	require.NoError(t, f.Set("raw", []byte("not json")))
	require.NoError(t, f.Set("gone", []byte(`1`)))
	require.NoError(t, f.Delete("gone"))

	reopened, err := localstore.OpenFile(path)
	require.NoError(t, err)

	v, ok, err := reopened.Get("offline_actions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":"1"}]`, string(v))

	_, ok, err = reopened.Get("gone")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = reopened.Get("raw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "not json", string(v))
}

func TestFile_MissingFileIsEmpty(t *testing.T) {
	f, err := localstore.OpenFile(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)

	_, ok, err := f.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_CopiesValues(t *testing.T) {
	m := localstore.NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set("k", buf))
	buf[0] = 'x'

	v, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", string(v))
}
