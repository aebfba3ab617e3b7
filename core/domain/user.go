package domain

import (
	"strings"
	"time"
)

// Language is the profile display language.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

// AccountStatus represents the remote account state.
type AccountStatus string

const (
	StatusActive          AccountStatus = "active"
	StatusBlocked         AccountStatus = "blocked"
	StatusPendingDeletion AccountStatus = "pending_deletion"
)

// DeletionInfo describes a scheduled account deletion.
type DeletionInfo struct {
	Scheduled     bool      `json:"scheduled"`
	DaysRemaining int       `json:"days_remaining"`
	DeletionDate  time.Time `json:"deletion_date"`
}

// UserProfile is the canonical identity record. ID never changes once
// assigned; Email is the only lookup key usable before ID is known.
type UserProfile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Name        *string  `json:"name,omitempty" db:"name"`
	Avatar      *string  `json:"avatar,omitempty" db:"avatar"` // URL or data: URI
	CountryCode *string  `json:"country_code,omitempty" db:"country_code"`
	Phone       *string  `json:"phone,omitempty" db:"phone"`
	Bio         *string  `json:"bio,omitempty" db:"bio"`
	Language    Language `json:"language,omitempty" db:"language"`
	Website     *string  `json:"website,omitempty" db:"website"`
	Gender      *string  `json:"gender,omitempty" db:"gender"`
	Profession  *string  `json:"profession,omitempty" db:"profession"`

	BirthDate *time.Time `json:"birth_date,omitempty" db:"birth_date"`

	Status         AccountStatus `json:"status,omitempty" db:"status"`
	BlockExpiresAt *time.Time    `json:"block_expires_at,omitempty" db:"block_expires_at"`
	Deletion       *DeletionInfo `json:"deletion_info,omitempty" db:"-"`
}

// Clone returns a deep copy so the published view can never be mutated
// behind the reconciler's back.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Name = cloneStr(p.Name)
	cp.Avatar = cloneStr(p.Avatar)
	cp.CountryCode = cloneStr(p.CountryCode)
	cp.Phone = cloneStr(p.Phone)
	cp.Bio = cloneStr(p.Bio)
	cp.Website = cloneStr(p.Website)
	cp.Gender = cloneStr(p.Gender)
	cp.Profession = cloneStr(p.Profession)
	cp.BirthDate = cloneTime(p.BirthDate)
	cp.BlockExpiresAt = cloneTime(p.BlockExpiresAt)
	if p.Deletion != nil {
		d := *p.Deletion
		cp.Deletion = &d
	}
	return &cp
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NormalizeEmail lowercases and trims an email for lookup purposes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfilePatch is a partial profile edit. Nil fields are untouched.
type ProfilePatch struct {
	Name        *string    `json:"name,omitempty"`
	Avatar      *string    `json:"avatar,omitempty"`
	CountryCode *string    `json:"country_code,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Bio         *string    `json:"bio,omitempty"`
	Language    *Language  `json:"language,omitempty"`
	Website     *string    `json:"website,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	Profession  *string    `json:"profession,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Avatar == nil && p.CountryCode == nil &&
		p.Phone == nil && p.Bio == nil && p.Language == nil &&
		p.Website == nil && p.Gender == nil && p.Profession == nil &&
		p.BirthDate == nil
}

// Apply merges the patch into dst and bumps UpdatedAt.
func (p ProfilePatch) Apply(dst *UserProfile) {
	if p.Name != nil {
		dst.Name = cloneStr(p.Name)
	}
	if p.Avatar != nil {
		dst.Avatar = cloneStr(p.Avatar)
	}
	if p.CountryCode != nil {
		dst.CountryCode = cloneStr(p.CountryCode)
	}
	if p.Phone != nil {
		dst.Phone = cloneStr(p.Phone)
	}
	if p.Bio != nil {
		dst.Bio = cloneStr(p.Bio)
	}
	if p.Language != nil {
		dst.Language = *p.Language
	}
	if p.Website != nil {
		dst.Website = cloneStr(p.Website)
	}
	if p.Gender != nil {
		dst.Gender = cloneStr(p.Gender)
	}
	if p.Profession != nil {
		dst.Profession = cloneStr(p.Profession)
	}
	if p.BirthDate != nil {
		dst.BirthDate = cloneTime(p.BirthDate)
	}
	dst.UpdatedAt = time.Now().UTC()
}

// Fields returns the patch as a column map for the secondary update path.
func (p ProfilePatch) Fields() map[string]any {
	m := make(map[string]any)
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Avatar != nil {
		m["avatar"] = *p.Avatar
	}
	if p.CountryCode != nil {
		m["country_code"] = *p.CountryCode
	}
	if p.Phone != nil {
		m["phone"] = *p.Phone
	}
	if p.Bio != nil {
		m["bio"] = *p.Bio
	}
	if p.Language != nil {
		m["language"] = string(*p.Language)
	}
	if p.Website != nil {
		m["website"] = *p.Website
	}
	if p.Gender != nil {
		m["gender"] = *p.Gender
	}
	if p.Profession != nil {
		m["profession"] = *p.Profession
	}
	if p.BirthDate != nil {
		m["birth_date"] = *p.BirthDate
	}
	return m
}
