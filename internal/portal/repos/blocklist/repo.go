package blocklist

import (
	"sync"

	"github.com/haukened/portalgate/internal/portal/domain"
)

// repository applies a cache → bloom → store pipeline on reads. Load is the
// only writer and runs once at startup, but it swaps state under a lock so
// readers never observe a half-built snapshot.
type repository struct {
	mu      sync.RWMutex
	store   Store
	cache   DecisionCache
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
	slugs   []string
}

// NewRepository constructs a Repository. fpRate is the target false-positive
// rate for the Bloom filter built on Load.
func NewRepository(store Store, cache DecisionCache, factory BloomFactory, fpRate float64) Repository {
	return &repository{store: store, cache: cache, factory: factory, fpRate: fpRate}
}

// Decide returns the decision for slug. Matching is exact and
// case-sensitive. On internal errors the slug is allowed.
func (r *repository) Decide(slug string) domain.BlockDecision {
	if slug == "" {
		return domain.EmptyDecision()
	}
	if d, ok := r.checkCache(slug); ok {
		return d
	}
	if !r.checkBloom(slug) {
		return domain.EmptyDecision()
	}
	dec := r.checkStore(slug)
	r.updateCache(slug, dec)
	return dec
}

// Load rebuilds the store, builds a fresh Bloom filter and purges the cache.
func (r *repository) Load(rules []domain.SlugRule, version uint64, updatedUnix int64) error {
	if err := r.store.RebuildAll(rules, version, updatedUnix); err != nil {
		return err
	}
	bf := r.factory.New(uint64(len(rules)), r.fpRate)
	slugs := make([]string, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, ru := range rules {
		bf.Add([]byte(ru.Slug))
		if _, dup := seen[ru.Slug]; dup {
			continue
		}
		seen[ru.Slug] = struct{}{}
		slugs = append(slugs, ru.Slug)
	}

	r.mu.Lock()
	r.bloom = bf
	r.slugs = slugs
	r.cache.Purge()
	r.mu.Unlock()
	return nil
}

// Slugs returns the loaded slugs in load order.
func (r *repository) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.slugs...)
}

func (r *repository) Stats() RepoStats {
	return RepoStats{Cache: r.cache.Stats(), Store: r.store.Stats()}
}

// checkBloom returns false only when the slug is definitely absent. Without
// a loaded filter the store is authoritative.
func (r *repository) checkBloom(slug string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	return bf.MightContain([]byte(slug))
}

func (r *repository) checkCache(slug string) (domain.BlockDecision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache.Get(slug)
}

func (r *repository) checkStore(slug string) domain.BlockDecision {
	rule, ok, err := r.store.Get(slug)
	if err == nil && ok {
		return domain.BlockDecision{Blocked: true, MatchedSlug: rule.Slug, Source: rule.Source}
	}
	return domain.EmptyDecision()
}

func (r *repository) updateCache(slug string, dec domain.BlockDecision) {
	r.mu.Lock()
	r.cache.Put(slug, dec)
	r.mu.Unlock()
}
