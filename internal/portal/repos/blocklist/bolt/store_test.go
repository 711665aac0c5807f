package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist"
	"github.com/haukened/portalgate/internal/portal/repos/storage"
)

func newStore(t *testing.T) (blocklist.Store, *bbolt.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := New(db)
	require.NoError(t, err)
	return st, db
}

func rule(slug string, at time.Time) domain.SlugRule {
	return domain.SlugRule{Slug: slug, Source: "config", AddedAt: at}
}

func TestBoltStore_EmptyMiss(t *testing.T) {
	st, _ := newStore(t)
	_, ok, err := st.Get("files")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.Get("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltStore_RebuildAndGet(t *testing.T) {
	st, _ := newStore(t)
	now := time.Unix(1700000000, 0)
	require.NoError(t, st.RebuildAll([]domain.SlugRule{rule("files", now), rule("calendar", now)}, 3, now.Unix()))

	r, ok, err := st.Get("files")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "config", r.Source)
	assert.Equal(t, now.Unix(), r.AddedAt.Unix())

	_, ok, err = st.Get("Files")
	require.NoError(t, err)
	assert.False(t, ok, "lookups are case-sensitive")

	slugs, err := st.Slugs()
	require.NoError(t, err)
	assert.Equal(t, []string{"calendar", "files"}, slugs)

	stats := st.Stats()
	assert.Equal(t, uint64(2), stats.Slugs)
	assert.Equal(t, uint64(3), stats.Version)
	assert.Equal(t, now.Unix(), stats.UpdatedUnix)
}

func TestBoltStore_RebuildReplaces(t *testing.T) {
	st, _ := newStore(t)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.SlugRule{rule("files", now)}, 1, now.Unix()))
	require.NoError(t, st.RebuildAll([]domain.SlugRule{rule("events", now)}, 2, now.Unix()))

	_, ok, _ := st.Get("files")
	assert.False(t, ok)
	_, ok, _ = st.Get("events")
	assert.True(t, ok)
}

func TestBoltStore_RebuildInvalidRuleRollsBack(t *testing.T) {
	st, _ := newStore(t)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.SlugRule{rule("files", now)}, 1, now.Unix()))

	err := st.RebuildAll([]domain.SlugRule{rule("has space", now)}, 2, now.Unix())
	assert.Error(t, err)

	_, ok, _ := st.Get("files")
	assert.True(t, ok, "failed rebuild must leave the previous snapshot intact")
	assert.Equal(t, uint64(1), st.Stats().Version)
}

func TestBoltStore_CorruptValue(t *testing.T) {
	st, db := newStore(t)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSlugs).Put([]byte("files"), []byte("{not json"))
	}))
	_, ok, err := st.Get("files")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, st.Close())
}
