package out

import (
	"context"

	"github.com/kareemamged/rashadai-sub002/core/domain"
)

// ProfileCache is the durable per-device cache of profile snapshots, one
// entry per user ever signed in on this device. Entries grow
// monotonically and are only removed by Delete on sign-out.
type ProfileCache interface {
	// Get returns the cached profile, or (nil, nil) when absent. Reading
	// never mutates the entry.
	Get(ctx context.Context, id string) (*domain.UserProfile, error)

	// GetByEmail resolves the secondary email index.
	GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error)

	// Put writes an entry, always bumping UpdatedAt to now.
	Put(ctx context.Context, profile *domain.UserProfile) error

	// Delete removes the entry and its email index.
	Delete(ctx context.Context, id string) error

	// LastLoginEmail returns the last-logged-in email convenience flag.
	// A UX hint only, never a trust boundary.
	LastLoginEmail(ctx context.Context) (string, error)

	// SetLastLoginEmail records the convenience flag.
	SetLastLoginEmail(ctx context.Context, email string) error

	// Close releases the underlying store.
	Close() error
}

// SessionVault durably stores at most one self-issued session record,
// encrypted at rest.
type SessionVault interface {
	// Store serializes, encrypts and writes the record, overwriting any
	// prior one.
	Store(ctx context.Context, record *domain.SessionRecord) error

	// Load returns the live record, or (nil, nil) when the vault is
	// empty, the record expired, or the blob is malformed. Load never
	// returns a decode error; expired records are purged.
	Load(ctx context.Context) (*domain.SessionRecord, error)

	// Refresh replaces the embedded profile and resets the expiry to
	// now+7d. Returns false when no live record exists.
	Refresh(ctx context.Context, profile *domain.UserProfile) (bool, error)

	// Clear deletes the record. Idempotent.
	Clear(ctx context.Context) error
}
