package localstore

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// BadgerCache implements out.ProfileCache on the shared Badger DB.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache creates a cache over an opened store.
func NewBadgerCache(db *badger.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

// Get returns the cached profile without mutating the entry.
func (c *BadgerCache) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	data, err := get(c.db, prefixProfile+id)
	if err != nil || data == nil {
		return nil, err
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		// A corrupt entry behaves like a miss; the next Put repairs it.
		logger.WithError(err).WithUser(id).Warn("discarding corrupt cache entry")
		return nil, nil
	}
	return &profile, nil
}

// GetByEmail resolves the email index, then the entry.
func (c *BadgerCache) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	id, err := get(c.db, prefixEmail+domain.NormalizeEmail(email))
	if err != nil || id == nil {
		return nil, err
	}
	return c.Get(ctx, string(id))
}

// Put writes the entry and its email index, bumping UpdatedAt to now.
func (c *BadgerCache) Put(ctx context.Context, profile *domain.UserProfile) error {
	cp := profile.Clone()
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixProfile+cp.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixEmail+domain.NormalizeEmail(cp.Email)), []byte(cp.ID))
	})
}

// Delete removes the entry and its email index.
func (c *BadgerCache) Delete(ctx context.Context, id string) error {
	profile, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	keys := []string{prefixProfile + id}
	if profile != nil {
		keys = append(keys, prefixEmail+domain.NormalizeEmail(profile.Email))
	}
	return del(c.db, keys...)
}

// LastLoginEmail returns the convenience flag, empty when unset.
func (c *BadgerCache) LastLoginEmail(ctx context.Context) (string, error) {
	data, err := get(c.db, keyLastEmail)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetLastLoginEmail records the convenience flag.
func (c *BadgerCache) SetLastLoginEmail(ctx context.Context, email string) error {
	return set(c.db, keyLastEmail, []byte(domain.NormalizeEmail(email)))
}

// Close closes the underlying store.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
