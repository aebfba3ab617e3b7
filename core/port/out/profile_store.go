package out

import (
	"context"

	"github.com/kareemamged/rashadai-sub002/core/domain"
)

// ProfileStore is the outbound port for the hosted profile store. Every
// method may fail transiently; callers are expected to degrade to local
// state rather than propagate those failures.
type ProfileStore interface {
	// GetByID retrieves a profile by user id. Missing profiles return
	// (nil, nil).
	GetByID(ctx context.Context, id string) (*domain.UserProfile, error)

	// GetByEmail retrieves a profile by email, the only lookup usable
	// before the id is known. Missing profiles return (nil, nil).
	GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error)

	// Upsert creates or replaces a profile record (primary update path).
	Upsert(ctx context.Context, profile *domain.UserProfile) error

	// UpdateFields applies a column map to an existing record (secondary
	// update path, used when Upsert fails).
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	// VerifyPassword checks credentials against the stored credential
	// state, bypassing the gateway's confirmation gating. false with a
	// nil error means wrong password.
	VerifyPassword(ctx context.Context, email, password string) (bool, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// ClearBlock resets an expired block back to active status.
	ClearBlock(ctx context.Context, id string) error

	// CancelDeletion clears a scheduled account deletion.
	CancelDeletion(ctx context.Context, id string) error

	// UploadAvatar stores an avatar image and returns its public URL.
	UploadAvatar(ctx context.Context, id string, data []byte, contentType string) (string, error)

	// RecordActivity writes an activity record. Fire-and-forget from the
	// caller's perspective.
	RecordActivity(ctx context.Context, userID, kind string, metadata map[string]any) error
}
