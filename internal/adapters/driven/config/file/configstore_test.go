package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyTopK, 10))
	require.NoError(t, store.Set(KeyScoreThreshold, 0.25))
	require.NoError(t, store.Set(KeyRerankEnabled, true))
	require.NoError(t, store.Set(KeyPrimaryBackend, "sqlitevec"))

	assert.Equal(t, 10, store.GetInt(KeyTopK))
	assert.Equal(t, 0.25, store.GetFloat(KeyScoreThreshold))
	assert.True(t, store.GetBool(KeyRerankEnabled))
	assert.Equal(t, "sqlitevec", store.GetString(KeyPrimaryBackend))
}

func TestConfigStore_MissingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "", store.GetString("nope"))
	assert.Equal(t, 0, store.GetInt("nope"))
	assert.Equal(t, 0.0, store.GetFloat("nope"))
	assert.False(t, store.GetBool("nope"))

	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestConfigStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyQdrantURL, "http://localhost:6333"))
	require.NoError(t, store.Set(KeyVerifySamples, 25))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6333", reopened.GetString(KeyQdrantURL))
	assert.Equal(t, 25, reopened.GetInt(KeyVerifySamples))
}

func TestConfigStore_LoadFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := "[retrieval]\ntop_k = 7\nscore_threshold = 0.4\n\n[migration]\nscore_epsilon = 0.02\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, store.GetInt(KeyTopK))
	assert.Equal(t, 0.4, store.GetFloat(KeyScoreThreshold))
	assert.Equal(t, 0.02, store.GetFloat(KeyScoreEpsilon))
}

func TestConfigStore_FloatFromInt(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyScoreThreshold, 1))
	assert.Equal(t, 1.0, store.GetFloat(KeyScoreThreshold))
}

func TestConfigStore_Path(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}
