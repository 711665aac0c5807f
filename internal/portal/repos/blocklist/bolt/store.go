package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist"
	"github.com/haukened/portalgate/internal/portal/repos/storage"
)

var (
	bucketSlugs = []byte("slugs")
	bucketMeta  = []byte("slugs_meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// slugValue is the persisted form of a rule; the slug itself is the key.
type slugValue struct {
	Source  string `json:"source"`
	AddedAt int64  `json:"added"`
}

// boltStore implements blocklist.Store on a shared bbolt database.
type boltStore struct {
	db *bbolt.DB
}

// New ensures the slug buckets exist in db and returns a Store. Close on the
// returned store is a no-op; the database owner closes db.
func New(db *bbolt.DB) (blocklist.Store, error) {
	if err := storage.EnsureBuckets(db, bucketSlugs, bucketMeta); err != nil {
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return nil }

func (s *boltStore) Get(slug string) (domain.SlugRule, bool, error) {
	if slug == "" {
		return domain.SlugRule{}, false, nil
	}
	var (
		rule  domain.SlugRule
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSlugs)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(slug))
		if v == nil {
			return nil
		}
		var sv slugValue
		if err := json.Unmarshal(v, &sv); err != nil {
			return fmt.Errorf("decode slug %q: %w", slug, err)
		}
		rule = domain.SlugRule{Slug: slug, Source: sv.Source, AddedAt: time.Unix(sv.AddedAt, 0)}
		found = true
		return nil
	})
	if err != nil {
		return domain.SlugRule{}, false, err
	}
	return rule, found, nil
}

// RebuildAll replaces the slug bucket and metadata in a single transaction.
func (s *boltStore) RebuildAll(rules []domain.SlugRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSlugs); err != nil && tx.Bucket(bucketSlugs) != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketSlugs)
		if err != nil {
			return err
		}
		for _, r := range rules {
			if err := r.Validate(); err != nil {
				return err
			}
			v, err := json.Marshal(slugValue{Source: r.Source, AddedAt: r.AddedAt.Unix()})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.Slug), v); err != nil {
				return err
			}
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		vbuf := make([]byte, 8)
		ubuf := make([]byte, 8)
		binary.BigEndian.PutUint64(vbuf, version)
		binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
		if err := meta.Put(keyVersion, vbuf); err != nil {
			return err
		}
		return meta.Put(keyUpdated, ubuf)
	})
}

func (s *boltStore) Slugs() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSlugs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *boltStore) Stats() blocklist.StoreStats {
	st := blocklist.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketSlugs); b != nil {
			st.Slugs = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}
