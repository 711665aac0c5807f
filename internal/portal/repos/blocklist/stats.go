package blocklist

// CacheStats reports best-effort cache metrics.
type CacheStats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// StoreStats reports store metadata.
type StoreStats struct {
	Version     uint64
	UpdatedUnix int64
	Slugs       uint64
}
