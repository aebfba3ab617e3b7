package domain

import "time"

// SessionTTL is the fixed lifetime of a self-issued session.
const SessionTTL = 7 * 24 * time.Hour

// SessionRecord is the alternative, self-issued session stored in the
// local vault, independent of the hosted auth provider's own session.
type SessionRecord struct {
	User      UserProfile `json:"user"`
	Token     string      `json:"token"` // self-issued HS256 JWT
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the record must be treated as absent.
func (r *SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// NewSessionRecord creates a record with the fixed 7-day lifetime.
func NewSessionRecord(user UserProfile, token string, now time.Time) *SessionRecord {
	return &SessionRecord{
		User:      user,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
}
