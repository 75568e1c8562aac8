package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "promptvs_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestMigrate_Idempotent(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.Migrate())
	assert.Equal(t, "1", database.GetSetting("schema_version", ""))
}

func TestMigrate_KeepsNewerSchemaVersion(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.SetSetting("schema_version", "5"))
	require.NoError(t, database.Migrate())
	assert.Equal(t, "5", database.GetSetting("schema_version", ""))
}

func TestSettings_RoundTrip(t *testing.T) {
	database := newTestDB(t)

	assert.Equal(t, "fallback", database.GetSetting("missing", "fallback"))
	_, found, err := database.LookupSetting("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, database.SetSetting("gemini_api_key", "k1"))
	require.NoError(t, database.SetSetting("gemini_api_key", "k2"))
	v, found, err := database.LookupSetting("gemini_api_key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "k2", v)

	require.NoError(t, database.DeleteSetting("gemini_api_key"))
	require.NoError(t, database.DeleteSetting("gemini_api_key"))
	assert.Equal(t, "", database.GetSetting("gemini_api_key", ""))
}

func TestSettings_EmptyValueIsFound(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.SetSetting("blank", ""))
	_, found, err := database.LookupSetting("blank")
	require.NoError(t, err)
	assert.True(t, found)
}
