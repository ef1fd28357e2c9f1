package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIntegrity_Healthy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "healthy.sqlite")
	db, err := Open(dbPath, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)

	require.NoError(t, QuickCheck(context.Background(), db))
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(context.Background(), dbPath, "full")
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestVerifyIntegrity_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("this is definitely not a sqlite file, padded to look bigger than a header"), 0o600))

	_, err := VerifyIntegrity(context.Background(), path, "quick")
	assert.Error(t, err)
}

func TestVerifyIntegrity_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sqlite")
	_, err := VerifyIntegrity(context.Background(), path, "quick")
	require.ErrorIs(t, err, os.ErrNotExist)
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
