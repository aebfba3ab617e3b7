// Package persistence provides database adapters for the hosted
// relational store.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// ProfileAdapter implements out.ProfileStore using PostgreSQL.
type ProfileAdapter struct {
	db        *sqlx.DB
	avatarURL string // public base URL for uploaded avatars
}

// NewProfileAdapter creates a new ProfileAdapter.
func NewProfileAdapter(db *sqlx.DB, avatarURL string) *ProfileAdapter {
	return &ProfileAdapter{db: db, avatarURL: strings.TrimRight(avatarURL, "/")}
}

// profileRow mirrors the profiles table.
type profileRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	Name           sql.NullString `db:"name"`
	Avatar         sql.NullString `db:"avatar"`
	CountryCode    sql.NullString `db:"country_code"`
	Phone          sql.NullString `db:"phone"`
	Bio            sql.NullString `db:"bio"`
	Language       sql.NullString `db:"language"`
	Website        sql.NullString `db:"website"`
	Gender         sql.NullString `db:"gender"`
	Profession     sql.NullString `db:"profession"`
	BirthDate      sql.NullTime   `db:"birth_date"`
	Status         string         `db:"status"`
	BlockExpiresAt sql.NullTime   `db:"block_expires_at"`
	DeletionDate   sql.NullTime   `db:"deletion_date"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

const profileColumns = `id, email, name, avatar, country_code, phone, bio, language,
	website, gender, profession, birth_date, status, block_expires_at,
	deletion_date, created_at, updated_at`

func (r *profileRow) toDomain() *domain.UserProfile {
	p := &domain.UserProfile{
		ID:        r.ID,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Status:    domain.AccountStatus(r.Status),
	}
	p.Name = nullToPtr(r.Name)
	p.Avatar = nullToPtr(r.Avatar)
	p.CountryCode = nullToPtr(r.CountryCode)
	p.Phone = nullToPtr(r.Phone)
	p.Bio = nullToPtr(r.Bio)
	p.Website = nullToPtr(r.Website)
	p.Gender = nullToPtr(r.Gender)
	p.Profession = nullToPtr(r.Profession)
	if r.Language.Valid {
		p.Language = domain.Language(r.Language.String)
	}
	if r.BirthDate.Valid {
		t := r.BirthDate.Time
		p.BirthDate = &t
	}
	if r.BlockExpiresAt.Valid {
		t := r.BlockExpiresAt.Time
		p.BlockExpiresAt = &t
	}
	if r.DeletionDate.Valid {
		remaining := int(time.Until(r.DeletionDate.Time).Hours() / 24)
		if remaining < 0 {
			remaining = 0
		}
		p.Deletion = &domain.DeletionInfo{
			Scheduled:     true,
			DaysRemaining: remaining,
			DeletionDate:  r.DeletionDate.Time,
		}
	}
	return p
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// GetByID retrieves a profile by user id.
func (a *ProfileAdapter) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.TransientRemote("profile-store", err)
	}
	return row.toDomain(), nil
}

// GetByEmail retrieves a profile by email.
func (a *ProfileAdapter) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1`
	if err := a.db.GetContext(ctx, &row, query, domain.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.TransientRemote("profile-store", err)
	}
	return row.toDomain(), nil
}

// Upsert creates or replaces a profile record.
func (a *ProfileAdapter) Upsert(ctx context.Context, p *domain.UserProfile) error {
	query := `
		INSERT INTO profiles (id, email, name, avatar, country_code, phone, bio,
		                      language, website, gender, profession, birth_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			avatar = EXCLUDED.avatar,
			country_code = EXCLUDED.country_code,
			phone = EXCLUDED.phone,
			bio = EXCLUDED.bio,
			language = EXCLUDED.language,
			website = EXCLUDED.website,
			gender = EXCLUDED.gender,
			profession = EXCLUDED.profession,
			birth_date = EXCLUDED.birth_date,
			updated_at = GREATEST(profiles.updated_at, EXCLUDED.updated_at)`

	_, err := a.db.ExecContext(ctx, query,
		p.ID, domain.NormalizeEmail(p.Email), p.Name, p.Avatar, p.CountryCode,
		p.Phone, p.Bio, string(p.Language), p.Website, p.Gender, p.Profession,
		p.BirthDate, p.UpdatedAt)
	if err != nil {
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}

// updatableColumns guards the secondary update path against writing
// anything but plain profile fields.
var updatableColumns = map[string]bool{
	"name": true, "avatar": true, "country_code": true, "phone": true,
	"bio": true, "language": true, "website": true, "gender": true,
	"profession": true, "birth_date": true,
}

// UpdateFields applies a column map to an existing record.
func (a *ProfileAdapter) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		if !updatableColumns[col] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	if len(setClauses) == 0 {
		return nil
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), i)
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}

// VerifyPassword checks credentials against the stored hash. This is the
// primary sign-in path and deliberately bypasses the gateway's own
// confirmation gating.
func (a *ProfileAdapter) VerifyPassword(ctx context.Context, email, password string) (bool, error) {
	var hash string
	query := `SELECT password_hash FROM profiles WHERE lower(email) = $1`
	if err := a.db.GetContext(ctx, &hash, query, domain.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperr.TransientRemote("profile-store", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// UpdatePassword replaces the stored password hash.
func (a *ProfileAdapter) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE profiles SET password_hash = $1, updated_at = now() WHERE id = $2`
	if _, err := a.db.ExecContext(ctx, query, passwordHash, id); err != nil {
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}

// ClearBlock resets an expired block back to active status.
func (a *ProfileAdapter) ClearBlock(ctx context.Context, id string) error {
	query := `UPDATE profiles SET status = $1, block_expires_at = NULL, updated_at = now()
	          WHERE id = $2`
	if _, err := a.db.ExecContext(ctx, query, string(domain.StatusActive), id); err != nil {
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}

// CancelDeletion clears a scheduled account deletion.
func (a *ProfileAdapter) CancelDeletion(ctx context.Context, id string) error {
	query := `UPDATE profiles SET status = $1, deletion_date = NULL, updated_at = now()
	          WHERE id = $2`
	if _, err := a.db.ExecContext(ctx, query, string(domain.StatusActive), id); err != nil {
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}

// UploadAvatar stores the compressed avatar and returns its public URL.
func (a *ProfileAdapter) UploadAvatar(ctx context.Context, id string, data []byte, contentType string) (string, error) {
	query := `
		INSERT INTO avatars (user_id, content_type, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			data = EXCLUDED.data,
			updated_at = now()`
	if _, err := a.db.ExecContext(ctx, query, id, contentType, data); err != nil {
		return "", apperr.TransientRemote("profile-store", err)
	}
	return fmt.Sprintf("%s/avatars/%s", a.avatarURL, id), nil
}

// RecordActivity writes an activity record. Failures are the caller's
// problem only insofar as it wants to log them.
func (a *ProfileAdapter) RecordActivity(ctx context.Context, userID, kind string, metadata map[string]any) error {
	meta := []byte("{}")
	if len(metadata) > 0 {
		if encoded, err := json.Marshal(metadata); err == nil {
			meta = encoded
		}
	}
	query := `INSERT INTO user_activity (id, user_id, kind, metadata, created_at)
	          VALUES ($1, $2, $3, $4::jsonb, now())`
	if _, err := a.db.ExecContext(ctx, query, uuid.NewString(), userID, kind, string(meta)); err != nil {
		logger.WithError(err).WithUser(userID).Warn("activity record dropped")
		return apperr.TransientRemote("profile-store", err)
	}
	return nil
}
