package session

import (
	"encoding/json"
	"errors"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/portalgate/internal/portal/common/clock"
	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/repos/storage"
)

// ErrSessionRequired is returned when an operation is attempted without a
// session identifier.
var ErrSessionRequired = errors.New("session id required")

var bucketSessions = []byte("sessions")

// Store persists per-session login state and the one-shot login redirect
// flag. Every mutation runs in its own bbolt read-write transaction, which
// bbolt serialises, so a flag can be consumed at most once.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

// New ensures the sessions bucket exists and returns a Store.
func New(db *bbolt.DB, clk clock.Clock) (*Store, error) {
	if err := storage.EnsureBuckets(db, bucketSessions); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{db: db, clock: clk}, nil
}

// Get returns the record for id. A missing record is reported with ok=false
// and no error.
func (s *Store) Get(id string) (domain.SessionRecord, bool, error) {
	if id == "" {
		return domain.SessionRecord{}, false, ErrSessionRequired
	}
	var (
		rec domain.SessionRecord
		ok  bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		r, found, err := read(tx.Bucket(bucketSessions), id)
		rec, ok = r, found
		return err
	})
	return rec, ok, err
}

// IsLoggedIn reports the stored login state; unknown sessions are logged out.
func (s *Store) IsLoggedIn(id string) (bool, error) {
	rec, _, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return rec.LoggedIn, nil
}

// SetLoggedIn records the login state for id. Logging out also clears any
// pending login redirect.
func (s *Store) SetLoggedIn(id string, loggedIn bool) error {
	return s.update(id, func(rec *domain.SessionRecord) (bool, error) {
		rec.LoggedIn = loggedIn
		if !loggedIn {
			rec.LoginRedirect = domain.FlagUnset
		}
		return true, nil
	})
}

// ArmLoginRedirect marks id as logged in and moves its flag to set.
func (s *Store) ArmLoginRedirect(id string) error {
	return s.update(id, func(rec *domain.SessionRecord) (bool, error) {
		rec.LoggedIn = true
		rec.LoginRedirect = domain.FlagSet
		return true, nil
	})
}

// ConsumeLoginRedirect reads and clears the flag. It returns the state
// observed before the call: FlagSet means the caller owns the redirect;
// anything else means there is nothing to do. Only a set flag opens a
// read-write transaction, and the state is checked again inside it.
func (s *Store) ConsumeLoginRedirect(id string) (domain.FlagState, error) {
	rec, _, err := s.Get(id)
	if err != nil || rec.LoginRedirect != domain.FlagSet {
		return rec.LoginRedirect, err
	}
	var prev domain.FlagState
	err = s.update(id, func(rec *domain.SessionRecord) (bool, error) {
		prev = rec.LoginRedirect
		if prev != domain.FlagSet {
			return false, nil
		}
		rec.LoginRedirect = domain.FlagConsumed
		return true, nil
	})
	return prev, err
}

// Delete forgets id entirely.
func (s *Store) Delete(id string) error {
	if id == "" {
		return ErrSessionRequired
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

// update loads (or initialises) the record for id, applies fn and writes the
// record back when fn reports a change.
func (s *Store) update(id string, fn func(rec *domain.SessionRecord) (bool, error)) error {
	if id == "" {
		return ErrSessionRequired
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		rec, _, err := read(b, id)
		if err != nil {
			return err
		}
		rec.ID = id
		changed, err := fn(&rec)
		if err != nil || !changed {
			return err
		}
		rec.UpdatedUnix = s.clock.Now().Unix()
		v, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode session %q: %w", id, err)
		}
		return b.Put([]byte(id), v)
	})
}

func read(b *bbolt.Bucket, id string) (domain.SessionRecord, bool, error) {
	var rec domain.SessionRecord
	if b == nil {
		return rec, false, nil
	}
	v := b.Get([]byte(id))
	if v == nil {
		return rec, false, nil
	}
	if err := json.Unmarshal(v, &rec); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("decode session %q: %w", id, err)
	}
	return rec, true, nil
}
