// Package localstore provides the durable on-device stores: the profile
// cache and the encrypted session vault, both backed by a single
// BadgerDB instance.
package localstore

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Key namespaces inside the shared Badger DB.
const (
	prefixProfile = "profile/"
	prefixEmail   = "email/"
	keyLastEmail  = "meta/last_login_email"
	keySession    = "session/current"
)

// Open opens the on-device store at dir. Badger's own logging is routed
// away; the adapters log through pkg/logger.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1)
	return badger.Open(opts)
}

// OpenInMemory opens a throwaway in-memory store for tests.
func OpenInMemory() (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return badger.Open(opts)
}

func get(db *badger.DB, key string) ([]byte, error) {
	var val []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func set(db *badger.DB, key string, val []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func del(db *badger.DB, keys ...string) error {
	return db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}
