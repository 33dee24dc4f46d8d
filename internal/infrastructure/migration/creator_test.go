package migration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "create bills table")
	require.NoError(t, err)

	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)
	assert.Contains(t, mf.UpPath, "_create_bills_table.up.sql")
	assert.Contains(t, mf.DownPath, "_create_bills_table.down.sql")

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "create bills table")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "create_bills_table", sanitizeName("Create Bills Table"))
	assert.Equal(t, "add_index", sanitizeName("add--index!"))
	assert.Equal(t, "v2_schema", sanitizeName("  v2 schema  "))
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Empty(t, migrations)

	_, err = CreateMigration(dir, "first")
	require.NoError(t, err)

	migrations, err = ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Contains(t, migrations[0], "_first")

	migrations, err = ListMigrations(dir + "/missing")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}
