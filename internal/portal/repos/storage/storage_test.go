package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
)

func TestOpen_CreatesDirectoryAndBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portal.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureBuckets(db, []byte("a"), []byte("b")))
	// idempotent
	require.NoError(t, EnsureBuckets(db, []byte("a")))

	err = db.View(func(tx *bbolt.Tx) error {
		assert.NotNil(t, tx.Bucket([]byte("a")))
		assert.NotNil(t, tx.Bucket([]byte("b")))
		return nil
	})
	require.NoError(t, err)
}

func TestEnsureBuckets_EmptyNameFails(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Error(t, EnsureBuckets(db, []byte{}))
}
