package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/migrations"
)

func TestPending(t *testing.T) {
	files := fstest.MapFS{
		"002_change_feed.sql": {Data: []byte("select 2")},
		"001_init.sql":        {Data: []byte("select 1")},
		"999_reset_all.sql":   {Data: []byte("drop schema public")},
		"README.md":           {Data: []byte("notes")},
		"003_seed.sql":        {Data: []byte("select 3")},
	}

	names, err := Pending(files, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_change_feed.sql", "003_seed.sql"}, names)

	names, err = Pending(files, map[string]bool{"001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_change_feed.sql", "003_seed.sql"}, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := Pending(migrations.FS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}
