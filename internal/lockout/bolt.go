package lockout

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var lockoutBucket = []byte("lockout")

// BoltStore persists lockout state in a bbolt file so lockouts survive a
// restart. It does not coordinate machines sharing one remote directory.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the database at path. A second process
// holding the file makes it fail after one second.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open lockout db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lockoutBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create lockout bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file.
func (b *BoltStore) Close() error { return b.db.Close() }

// Get returns the stored record, or nil when username has none.
func (b *BoltStore) Get(username string) (*State, error) {
	var s *State
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(lockoutBucket).Get([]byte(username))
		if v == nil {
			return nil
		}
		s = &State{}
		return json.Unmarshal(v, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Put writes s as JSON under s.Username.
func (b *BoltStore) Put(s *State) error {
	v, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(lockoutBucket).Put([]byte(s.Username), v)
	})
}

// Delete removes the record for username.
func (b *BoltStore) Delete(username string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(lockoutBucket).Delete([]byte(username))
	})
}
