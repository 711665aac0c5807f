package blocklist

import "github.com/haukened/portalgate/internal/portal/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target
// false-positive rate (p): m bits and k hash functions.
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal surface the repository needs from a Bloom
// filter.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions by slug.
type DecisionCache interface {
	Get(slug string) (domain.BlockDecision, bool)
	Put(slug string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the authoritative slug index.
type Store interface {
	// Get returns the rule stored for slug, if any.
	Get(slug string) (domain.SlugRule, bool, error)
	// RebuildAll atomically replaces every rule and the snapshot metadata.
	RebuildAll(rules []domain.SlugRule, version uint64, updatedUnix int64) error
	// Slugs lists stored slugs in byte order.
	Slugs() ([]string, error)
	Stats() StoreStats
	Close() error
}

// RepoStats exposes repository counters and the underlying store stats.
type RepoStats struct {
	Cache CacheStats
	Store StoreStats
}

// Repository composes cache → bloom → store.
type Repository interface {
	Decide(slug string) domain.BlockDecision
	Load(rules []domain.SlugRule, version uint64, updatedUnix int64) error
	Slugs() []string
	Stats() RepoStats
}
