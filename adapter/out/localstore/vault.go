package localstore

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/pkg/crypto"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// BadgerVault implements out.SessionVault: one AES-GCM encrypted blob
// holding a self-issued session record. The embedded token is an HS256
// JWT signed with the vault key, validated on every load so a tampered
// blob degrades to an empty vault instead of a forged session.
type BadgerVault struct {
	db      *badger.DB
	enc     *crypto.Encryptor
	signKey []byte
	now     func() time.Time
}

// NewBadgerVault creates a vault over an opened store. Empty key material
// falls back to the fixed application-level key.
func NewBadgerVault(db *badger.DB, keyMaterial string) (*BadgerVault, error) {
	if keyMaterial == "" {
		keyMaterial = crypto.DefaultKeyMaterial
	}
	enc, err := crypto.NewEncryptor([]byte(keyMaterial))
	if err != nil {
		return nil, err
	}
	return &BadgerVault{
		db:      db,
		enc:     enc,
		signKey: []byte(keyMaterial),
		now:     time.Now,
	}, nil
}

// SetClock overrides the vault clock. Tests only.
func (v *BadgerVault) SetClock(now func() time.Time) {
	v.now = now
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (v *BadgerVault) signToken(user *domain.UserProfile, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(v.now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
			Issuer:    "rashadai-local",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.signKey)
}

func (v *BadgerVault) verifyToken(tokenString string) bool {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return v.now() }))
	return err == nil && token.Valid
}

// Store serializes, encrypts and writes the record, overwriting any
// prior one. A record without a token gets a freshly signed one.
func (v *BadgerVault) Store(ctx context.Context, record *domain.SessionRecord) error {
	if record.Token == "" {
		token, err := v.signToken(&record.User, record.ExpiresAt)
		if err != nil {
			return err
		}
		record.Token = token
	}

	plain, err := json.Marshal(record)
	if err != nil {
		return err
	}
	sealed, err := v.enc.Encrypt(plain)
	if err != nil {
		return err
	}
	return set(v.db, keySession, sealed)
}

// Load returns the live record. Empty vault, expired record, corrupt
// blob or invalid token all yield (nil, nil); expired and corrupt
// content is purged.
func (v *BadgerVault) Load(ctx context.Context) (*domain.SessionRecord, error) {
	sealed, err := get(v.db, keySession)
	if err != nil || sealed == nil {
		return nil, err
	}

	plain, err := v.enc.Decrypt(sealed)
	if err != nil {
		logger.WithError(err).Warn("purging undecryptable session vault blob")
		return nil, v.Clear(ctx)
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(plain, &record); err != nil {
		logger.WithError(err).Warn("purging malformed session vault blob")
		return nil, v.Clear(ctx)
	}

	if record.Expired(v.now()) {
		return nil, v.Clear(ctx)
	}
	if !v.verifyToken(record.Token) {
		logger.Warn("purging session record with invalid token")
		return nil, v.Clear(ctx)
	}
	return &record, nil
}

// Refresh replaces the embedded profile and resets the expiry. Returns
// false when no live record exists.
func (v *BadgerVault) Refresh(ctx context.Context, profile *domain.UserProfile) (bool, error) {
	record, err := v.Load(ctx)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	now := v.now().UTC()
	record.User = *profile.Clone()
	record.ExpiresAt = now.Add(domain.SessionTTL)
	record.Token = "" // re-sign for the new expiry
	return true, v.Store(ctx, record)
}

// Clear deletes the record. Idempotent.
func (v *BadgerVault) Clear(ctx context.Context) error {
	return del(v.db, keySession)
}
