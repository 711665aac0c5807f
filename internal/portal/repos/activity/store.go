package activity

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/repos/storage"
)

var bucketActivity = []byte("activity")

// Store is an append-only activity log keyed by a monotonically increasing
// sequence, trimmed to a fixed number of records.
type Store struct {
	db        *bbolt.DB
	retention int
}

// New ensures the activity bucket exists. retention <= 0 keeps everything.
func New(db *bbolt.DB, retention int) (*Store, error) {
	if err := storage.EnsureBuckets(db, bucketActivity); err != nil {
		return nil, err
	}
	return &Store{db: db, retention: retention}, nil
}

// Append writes rec and drops the oldest records beyond retention.
func (s *Store) Append(rec domain.ActivityRecord) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketActivity)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), v); err != nil {
			return err
		}
		if s.retention <= 0 {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys[:max(0, len(keys)-s.retention)] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]domain.ActivityRecord, error) {
	var out []domain.ActivityRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketActivity).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(out) < n); k, v = c.Prev() {
			var rec domain.ActivityRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode activity %x: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
