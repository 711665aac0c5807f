package blocklist

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/portalgate/internal/portal/domain"
)

// --- fakes ---

type fakeStore struct {
	rules        map[string]domain.SlugRule
	getErr       error
	getCalls     int
	rebuildCalls int
	rebuildErr   error
	rebuildVer   uint64
}

func newFakeStore() *fakeStore { return &fakeStore{rules: make(map[string]domain.SlugRule)} }

func (s *fakeStore) Get(slug string) (domain.SlugRule, bool, error) {
	s.getCalls++
	if s.getErr != nil {
		return domain.SlugRule{}, false, s.getErr
	}
	r, ok := s.rules[slug]
	return r, ok, nil
}

func (s *fakeStore) RebuildAll(rules []domain.SlugRule, version uint64, _ int64) error {
	s.rebuildCalls++
	if s.rebuildErr != nil {
		return s.rebuildErr
	}
	s.rules = make(map[string]domain.SlugRule, len(rules))
	for _, r := range rules {
		s.rules[r.Slug] = r
	}
	s.rebuildVer = version
	return nil
}

func (s *fakeStore) Slugs() ([]string, error) { return nil, nil }
func (s *fakeStore) Stats() StoreStats        { return StoreStats{Slugs: uint64(len(s.rules)), Version: s.rebuildVer} }
func (s *fakeStore) Close() error             { return nil }

type fakeCache struct {
	m          map[string]domain.BlockDecision
	getCalls   int
	putCalls   int
	purgeCalls int
}

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string]domain.BlockDecision)} }

func (c *fakeCache) Get(slug string) (domain.BlockDecision, bool) {
	c.getCalls++
	v, ok := c.m[slug]
	return v, ok
}

func (c *fakeCache) Put(slug string, d domain.BlockDecision) {
	c.putCalls++
	c.m[slug] = d
}

func (c *fakeCache) Len() int          { return len(c.m) }
func (c *fakeCache) Purge()            { c.purgeCalls++; c.m = make(map[string]domain.BlockDecision) }
func (c *fakeCache) Stats() CacheStats { return CacheStats{Size: len(c.m)} }

type fakeBloom struct {
	contains map[string]bool
}

func newFakeBloom() *fakeBloom { return &fakeBloom{contains: make(map[string]bool)} }

func (b *fakeBloom) Add(key []byte)               { b.contains[string(key)] = true }
func (b *fakeBloom) MightContain(key []byte) bool { return b.contains[string(key)] }

type fakeFactory struct {
	newCap uint64
	newFp  float64
	ret    *fakeBloom
}

func (f *fakeFactory) New(capacity uint64, fpRate float64) BloomFilter {
	f.newCap = capacity
	f.newFp = fpRate
	f.ret = newFakeBloom()
	return f.ret
}

func rules(t *testing.T, slugs ...string) []domain.SlugRule {
	t.Helper()
	out := make([]domain.SlugRule, 0, len(slugs))
	for _, s := range slugs {
		r, err := domain.NewSlugRule(s, "test", time.Unix(1700000000, 0))
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

// --- tests ---

func TestDecide_BloomNegativeEarlyAllow(t *testing.T) {
	st := newFakeStore()
	ca := newFakeCache()
	repo := &repository{store: st, cache: ca, bloom: newFakeBloom()}

	dec := repo.Decide("files")
	assert.False(t, dec.Blocked)
	assert.Zero(t, st.getCalls, "store must not be consulted on bloom negative")
	assert.Zero(t, ca.putCalls)
}

func TestDecide_CacheHitShortCircuit(t *testing.T) {
	st := newFakeStore()
	ca := newFakeCache()
	ca.m["files"] = domain.BlockDecision{Blocked: true, MatchedSlug: "files"}
	repo := &repository{store: st, cache: ca, bloom: newFakeBloom()}

	dec := repo.Decide("files")
	assert.True(t, dec.Blocked)
	assert.Zero(t, st.getCalls)
}

func TestDecide_StoreHitIsCached(t *testing.T) {
	st := newFakeStore()
	st.rules["files"] = domain.SlugRule{Slug: "files", Source: "config"}
	ca := newFakeCache()
	bf := newFakeBloom()
	bf.contains["files"] = true
	repo := &repository{store: st, cache: ca, bloom: bf}

	dec := repo.Decide("files")
	assert.Equal(t, domain.BlockDecision{Blocked: true, MatchedSlug: "files", Source: "config"}, dec)
	assert.Equal(t, 1, ca.putCalls)

	// second call is served from cache
	repo.Decide("files")
	assert.Equal(t, 1, st.getCalls)
}

func TestDecide_StoreErrorAllows(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("boom")
	bf := newFakeBloom()
	bf.contains["files"] = true
	repo := &repository{store: st, cache: newFakeCache(), bloom: bf}

	assert.False(t, repo.Decide("files").Blocked)
}

func TestDecide_IsCaseSensitive(t *testing.T) {
	repo := NewRepository(newFakeStore(), newFakeCache(), &fakeFactory{}, 0.01)
	require.NoError(t, repo.Load(rules(t, "files"), 1, 0))

	assert.True(t, repo.Decide("files").Blocked)
	assert.False(t, repo.Decide("Files").Blocked)
	assert.False(t, repo.Decide("files ").Blocked)
	assert.False(t, repo.Decide("").Blocked)
}

func TestLoad_BuildsBloomAndPurgesCache(t *testing.T) {
	st := newFakeStore()
	ca := newFakeCache()
	ca.m["stale"] = domain.BlockDecision{Blocked: true}
	ff := &fakeFactory{}
	repo := NewRepository(st, ca, ff, 0.001)

	require.NoError(t, repo.Load(rules(t, "files", "calendar", "files"), 7, 1700000000))

	assert.Equal(t, uint64(3), ff.newCap)
	assert.Equal(t, 0.001, ff.newFp)
	assert.True(t, ff.ret.contains["calendar"])
	assert.Equal(t, 1, ca.purgeCalls)
	assert.Equal(t, []string{"files", "calendar"}, repo.Slugs())
	assert.Equal(t, uint64(7), repo.Stats().Store.Version)
}

func TestLoad_StoreErrorKeepsPreviousState(t *testing.T) {
	st := newFakeStore()
	st.rebuildErr = errors.New("disk full")
	ff := &fakeFactory{}
	repo := NewRepository(st, newFakeCache(), ff, 0.01)

	assert.Error(t, repo.Load(rules(t, "files"), 1, 0))
	assert.Nil(t, ff.ret, "bloom must not be built when the store rebuild fails")
	assert.Empty(t, repo.Slugs())
}
